package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]Event, error)
}

// Service records sync anomalies.
//
// Callers treat audit logging as best-effort: a failed append is logged by
// the caller and never propagated into a vendor-facing response.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if tenantID == "" {
		return nil, ErrInvalidEvent
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByTenant(ctx, tenantID, limit)
}

// MirrorWriteFailed records a swallowed task create/update failure.
func (s *Service) MirrorWriteFailed(ctx context.Context, tenantID, taskID, agentCallID, message string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeMirrorWriteFailed,
		TaskID:      taskID,
		AgentCallID: agentCallID,
		Message:     message,
	})
}

// AudioLinkFailed records a stored recording whose task link did not take.
func (s *Service) AudioLinkFailed(ctx context.Context, agentCallID, audioFileID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAudioLinkFailed,
		AgentCallID: agentCallID,
		Message:     message,
		Metadata:    `{"audio_file_id":"` + audioFileID + `"}`,
	})
}

// MissingCallID records a dial the vendor accepted without a call identifier.
func (s *Service) MissingCallID(ctx context.Context, tenantID, taskID, rawPayload string) error {
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeMissingCallID,
		TaskID:   taskID,
		Message:  "vendor accepted dial without agent_call_id",
		Metadata: rawPayload,
	})
}

// ReconcileRepair records a stale task brought back in line with vendor truth.
func (s *Service) ReconcileRepair(ctx context.Context, tenantID, taskID, agentCallID, fromStatus, toStatus string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeReconcileRepair,
		TaskID:      taskID,
		AgentCallID: agentCallID,
		Message:     "repaired " + fromStatus + " -> " + toStatus,
	})
}
