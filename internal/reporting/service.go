package reporting

import (
	"context"
	"errors"
	"time"

	"voicedesk/internal/billing"
	"voicedesk/internal/tasks"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations must enforce tenant filtering and should read from
// immutable sources where possible (usage ledger, task rows).

type Repository interface {
	ListTasks(ctx context.Context, tenantID string, from, to time.Time) ([]tasks.Task, error)
	ListUsage(ctx context.Context, tenantID string, from, to time.Time) ([]billing.UsageEntry, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) TasksSummary(ctx context.Context, req TasksSummaryRequest) (TasksSummary, error) {
	if req.TenantID == "" {
		return TasksSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return TasksSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return TasksSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListTasks(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return TasksSummary{}, err
	}

	out := TasksSummary{TenantID: req.TenantID}
	for _, t := range rows {
		out.TotalTasks++

		switch t.Status {
		case tasks.TaskStatusPending:
			out.PendingTasks++
		case tasks.TaskStatusInProgress:
			out.InProgressTasks++
		case tasks.TaskStatusCompleted:
			out.CompletedTasks++
		case tasks.TaskStatusFailed:
			out.FailedTasks++
		}

		switch t.Type {
		case tasks.TaskTypeCall:
			out.CallTasks++
			out.TotalCallSeconds += t.CallDurationSeconds
			if t.AudioFileID != "" || t.CallRecordingURL != "" {
				out.RecordedCalls++
			}
		case tasks.TaskTypeEmail:
			out.EmailTasks++
		default:
			out.OtherTasks++
		}

		if t.LeadsCompany != "" || t.LeadsInterestLevel != "" {
			out.LeadsCaptured++
		}
	}
	if out.CallTasks > 0 {
		out.AverageCallSeconds = out.TotalCallSeconds / out.CallTasks
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if req.TenantID == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SpendSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	entries, err := s.repo.ListUsage(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{TenantID: req.TenantID}
	for _, e := range entries {
		out.TotalCents += e.AmountCents
		out.TotalSeconds += e.DurationSeconds
		if e.Type == billing.EntryTypeCallUsage {
			out.CallCount++
		}
	}
	if out.CallCount > 0 {
		out.AverageCentsPerCall = out.TotalCents / int64(out.CallCount)
	}
	return out, nil
}
