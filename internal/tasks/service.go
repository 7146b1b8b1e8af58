package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"voicedesk/internal/audit"
	"voicedesk/internal/billing"
	"voicedesk/internal/voice"
	"voicedesk/pkg/blob"
	"voicedesk/pkg/utils"
)

var (
	ErrNotFound        = errors.New("tasks: not found")
	ErrInvalidArgument = errors.New("tasks: invalid argument")

	// ErrVendorNoCallID means the vendor accepted the dial but returned no
	// call identifier. A failed placeholder task is still recorded so the
	// attempt stays visible.
	ErrVendorNoCallID = errors.New("tasks: vendor returned no call id")

	// ErrAudioFetchInFlight means another worker holds the download guard
	// for this call; callers should retry shortly.
	ErrAudioFetchInFlight = errors.New("tasks: audio fetch already in flight")
)

// Store is the persistence surface behind the task mirror. PostgresStore is
// the production implementation; MemoryStore backs tests.
type Store interface {
	InsertTask(ctx context.Context, t Task) error
	FindTaskByID(ctx context.Context, id string) (Task, error)
	FindTaskByAgentCallID(ctx context.Context, agentCallID string) (Task, error)
	ApplyCallUpdate(ctx context.Context, taskID string, u CallUpdate, now time.Time) error
	ListTasksByTenant(ctx context.Context, tenantID string, limit int) ([]Task, error)
	ListInProgressCalls(ctx context.Context) ([]Task, error)
	ListStaleInProgressCalls(ctx context.Context, cutoff time.Time) ([]Task, error)

	// SaveAudio persists the recording descriptor and links it to the owning
	// task in one step. errAudioNotLinked reports that no task row took the
	// link (mirror row missing, or another fetch linked first).
	SaveAudio(ctx context.Context, agentCallID string, f AudioFile, now time.Time) error
	FindAudioByAgentCallID(ctx context.Context, agentCallID string) (AudioFile, bool, error)
}

// Service owns the task mirror of vendor call state.
//
// Contract: the vendor is the source of truth for call lifecycle. Local
// mirror writes are best-effort; a failed write is audited and counted but
// never fails the caller, because the next refresh rewrites the full field
// set anyway.
type Service struct {
	store    Store
	provider voice.Provider
	blobs    blob.Store
	rdb      *redis.Client
	auditor  *audit.Service
	billing  *billing.Service
	clock    func() time.Time
	log      *slog.Logger
}

func NewService(store Store, provider voice.Provider, blobs blob.Store, rdb *redis.Client, auditor *audit.Service, bill *billing.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		blobs:    blobs,
		rdb:      rdb,
		auditor:  auditor,
		billing:  bill,
		clock:    time.Now,
		log:      log,
	}
}

type InitiateCallRequest struct {
	TenantID string            `json:"tenant_id"`
	MemberID string            `json:"member_id,omitempty"`
	To       string            `json:"to"`
	Subject  string            `json:"subject,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InitiateCall places an outbound call with the voice vendor and mirrors it
// as an in_progress call task keyed by the vendor call id.
func (s *Service) InitiateCall(ctx context.Context, req InitiateCallRequest) (Task, error) {
	if req.TenantID == "" || req.To == "" {
		return Task{}, ErrInvalidArgument
	}
	// Surface missing or broken vendor configuration before dialing so the
	// caller gets a clean server error and no task row is created.
	if err := s.provider.HealthCheck(ctx); err != nil {
		return Task{}, fmt.Errorf("voice provider unavailable: %w", err)
	}

	result, err := s.provider.PlaceCall(ctx, voice.PlaceCallRequest{To: req.To, Metadata: req.Metadata})
	if err != nil {
		return Task{}, err
	}

	now := s.clock().UTC()
	task := Task{
		ID:                uuid.NewString(),
		TenantID:          req.TenantID,
		CreatedByMemberID: req.MemberID,
		Type:              TaskTypeCall,
		Status:            TaskStatusInProgress,
		Priority:          PriorityMedium,
		ToAddress:         req.To,
		Subject:           req.Subject,
		Metadata:          string(result.Raw),
		AgentCallID:       result.AgentCallID,
		TelephonyCallID:   result.TelephonyCallID,
		CallStatus:        CallStatusDialing,
		CallDirection:     DirectionOutbound,
		StartedAt:         now.UnixMilli(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if result.AgentCallID == "" {
		// The dial may or may not have gone out; without a call id there is
		// nothing to poll, so record the attempt as failed rather than
		// leaving an orphan in_progress row.
		task.Status = TaskStatusFailed
		task.CallStatus = CallStatusError
		task.CompletedAt = now.UnixMilli()
		if err := s.store.InsertTask(ctx, task); err != nil {
			s.mirrorWriteFailed(ctx, task, err)
		}
		if s.auditor != nil {
			if err := s.auditor.MissingCallID(ctx, task.TenantID, task.ID, task.Metadata); err != nil {
				s.log.Warn("audit append failed", "type", "missing_call_id", "error", err)
			}
		}
		return task, ErrVendorNoCallID
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		s.mirrorWriteFailed(ctx, task, err)
	}
	return task, nil
}

// CallStateEnvelope is the normalized call state returned to API callers.
// It deliberately carries no server-side timestamps: refreshing the same
// terminal call twice yields byte-identical envelopes.
type CallStateEnvelope struct {
	AgentCallID string     `json:"agent_call_id"`
	Status      TaskStatus `json:"status"`
	CallStatus  string     `json:"call_status"`

	CallDuration  int    `json:"call_duration"`
	CallStartTime int64  `json:"call_start_time,omitempty"`
	CallEndTime   int64  `json:"call_end_time,omitempty"`
	CallEndReason string `json:"call_end_reason,omitempty"`

	Transcript string `json:"transcript,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Sentiment  string `json:"sentiment,omitempty"`
	Successful *bool  `json:"successful,omitempty"`
	CostCents  int    `json:"cost,omitempty"`

	RecordingURL string `json:"recording_url,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"`

	Terminal bool `json:"terminal"`
}

func envelopeFrom(agentCallID string, u CallUpdate) CallStateEnvelope {
	return CallStateEnvelope{
		AgentCallID:   agentCallID,
		Status:        u.Status,
		CallStatus:    u.CallStatus,
		CallDuration:  u.DurationSeconds,
		CallStartTime: u.StartMs,
		CallEndTime:   u.EndMs,
		CallEndReason: u.EndReason,
		Transcript:    u.Transcript,
		Summary:       u.Summary,
		Sentiment:     u.Sentiment,
		Successful:    u.Successful,
		CostCents:     u.CostCents,
		RecordingURL:  u.RecordingURL,
		Terminal:      u.Terminal,
	}
}

// RefreshStatus fetches vendor truth for a call and replaces the mirrored
// task's full normalized field set. Vendor errors propagate; mirror write
// failures do not.
//
// When withAudio is set and the call completed, the recording is fetched and
// linked (once) before the envelope is returned.
func (s *Service) RefreshStatus(ctx context.Context, agentCallID string, withAudio bool) (CallStateEnvelope, error) {
	if agentCallID == "" {
		return CallStateEnvelope{}, ErrInvalidArgument
	}

	detail, err := s.provider.GetCall(ctx, agentCallID)
	if err != nil {
		return CallStateEnvelope{}, err
	}

	now := s.clock().UTC()
	update := BuildCallUpdate(detail, now)
	env := envelopeFrom(agentCallID, update)

	task, err := s.store.FindTaskByAgentCallID(ctx, agentCallID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No local mirror for this call. Vendor truth is still valid
			// and is returned as-is.
			return env, nil
		}
		s.log.Warn("task lookup failed during refresh", "agent_call_id", agentCallID, "error", err)
		return env, nil
	}

	if err := s.store.ApplyCallUpdate(ctx, task.ID, update, now); err != nil {
		s.mirrorWriteFailed(ctx, task, err)
	}

	if update.Terminal && update.Status == TaskStatusCompleted && s.billing != nil {
		_, _, err := s.billing.ChargeCall(ctx, task.TenantID, billing.ChargeCallRequest{
			AgentCallID:     agentCallID,
			VendorCostCents: update.CostCents,
			DurationSeconds: update.DurationSeconds,
		})
		if err != nil {
			s.log.Warn("usage charge failed", "agent_call_id", agentCallID, "tenant_id", task.TenantID, "error", err)
		}
	}

	if withAudio && update.Terminal && update.Status == TaskStatusCompleted {
		file, err := s.FetchAudio(ctx, agentCallID)
		if err != nil {
			// Audio is an enrichment of the envelope, not part of the
			// status contract.
			if !errors.Is(err, ErrAudioFetchInFlight) {
				s.log.Warn("audio fetch failed during refresh", "agent_call_id", agentCallID, "error", err)
			}
		} else {
			env.AudioURL = file.URL
		}
	}

	return env, nil
}

const audioFetchGuardTTL = 2 * time.Minute

func audioKey(agentCallID string) string {
	return "calls/" + agentCallID + "/audio.wav"
}

// FetchAudio downloads a finished call's recording from the vendor, stores
// it, and links it to the mirrored task. The operation is idempotent: a
// linked task short-circuits, and a Redis guard keeps concurrent fetches of
// the same call from hitting the vendor twice.
func (s *Service) FetchAudio(ctx context.Context, agentCallID string) (AudioFile, error) {
	if agentCallID == "" {
		return AudioFile{}, ErrInvalidArgument
	}

	if existing, ok, err := s.store.FindAudioByAgentCallID(ctx, agentCallID); err != nil {
		return AudioFile{}, err
	} else if ok {
		return existing, nil
	}

	if s.rdb != nil {
		acquired, err := utils.AcquireConcurrencyCap(ctx, s.rdb, utils.AudioFetchKey(agentCallID), 1, audioFetchGuardTTL)
		if err != nil {
			s.log.Warn("audio fetch guard unavailable", "agent_call_id", agentCallID, "error", err)
		} else if !acquired {
			return AudioFile{}, ErrAudioFetchInFlight
		} else {
			defer func() {
				if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), s.rdb, utils.AudioFetchKey(agentCallID)); err != nil {
					s.log.Warn("audio fetch guard release failed", "agent_call_id", agentCallID, "error", err)
				}
			}()
		}
	}

	// Re-check under the guard: a concurrent fetch may have linked while we
	// were acquiring.
	if existing, ok, err := s.store.FindAudioByAgentCallID(ctx, agentCallID); err != nil {
		return AudioFile{}, err
	} else if ok {
		return existing, nil
	}

	audio, err := s.provider.GetCallAudio(ctx, agentCallID)
	if err != nil {
		return AudioFile{}, err
	}
	utils.AudioFetchesTotal.Inc()

	key := audioKey(agentCallID)
	if err := s.blobs.Write(ctx, key, bytes.NewReader(audio.Bytes), int64(len(audio.Bytes)), audio.ContentType); err != nil {
		return AudioFile{}, fmt.Errorf("store audio for %s: %w", agentCallID, err)
	}

	now := s.clock().UTC()
	file := AudioFile{
		ID:          uuid.NewString(),
		Path:        key,
		URL:         s.blobs.PublicURL(key),
		ContentType: audio.ContentType,
		SizeBytes:   int64(len(audio.Bytes)),
		CreatedAt:   now,
	}

	if err := s.store.SaveAudio(ctx, agentCallID, file, now); err != nil {
		// The bytes are stored; only the link is missing. Audit it so the
		// reconciliation sweep or a manual repair can restore the link.
		if s.auditor != nil {
			if auditErr := s.auditor.AudioLinkFailed(ctx, agentCallID, file.ID, err.Error()); auditErr != nil {
				s.log.Warn("audit append failed", "type", "audio_link_failed", "error", auditErr)
			}
		}
		s.log.Warn("audio link failed", "agent_call_id", agentCallID, "audio_file_id", file.ID, "error", err)
	}

	return file, nil
}

// OpenAudio streams the stored recording for a call.
func (s *Service) OpenAudio(ctx context.Context, agentCallID string) (AudioFile, io.ReadCloser, error) {
	file, ok, err := s.store.FindAudioByAgentCallID(ctx, agentCallID)
	if err != nil {
		return AudioFile{}, nil, err
	}
	if !ok {
		return AudioFile{}, nil, ErrNotFound
	}
	rc, _, err := s.blobs.Read(ctx, file.Path)
	if err != nil {
		return AudioFile{}, nil, err
	}
	return file, rc, nil
}

// LeadsInfo is the lead sheet a voice agent reports on call completion.
type LeadsInfo struct {
	Company          string `json:"company,omitempty"`
	Domain           string `json:"domain,omitempty"`
	Address          string `json:"address,omitempty"`
	Industry         string `json:"industry,omitempty"`
	HoursOfOperation string `json:"hours_of_operation,omitempty"`
	InterestLevel    string `json:"interest_level,omitempty"`
	PainPoints       string `json:"pain_points,omitempty"`
	NextSteps        string `json:"next_steps,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// ResearchInfo is pre-call research reported alongside or instead of leads.
// The list fields are stored JSON-serialized.
type ResearchInfo struct {
	CompanyOverview    []string `json:"company_overview,omitempty"`
	PainPoints         []string `json:"pain_points,omitempty"`
	KeyPeople          []string `json:"key_people,omitempty"`
	SalesOpportunities []string `json:"sales_opportunities,omitempty"`
}

type IngestCompletionRequest struct {
	TenantID       string        `json:"tenant_id"`
	AgentCallID    string        `json:"agent_call_id,omitempty"`
	FromAddress    string        `json:"from_address,omitempty"`
	ToAddress      string        `json:"to_address,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	Content        string        `json:"content,omitempty"`
	SubmissionType string        `json:"submission_type,omitempty"`
	Leads          *LeadsInfo    `json:"leads_info,omitempty"`
	Research       *ResearchInfo `json:"research_info,omitempty"`
}

// IngestCompletion records a completed agent interaction pushed from the
// vendor side. At least one of leads_info or research_info must be present.
// Omitted envelope fields fall back to agent-completion defaults so every
// ingested task is addressable and searchable in the dashboard.
func (s *Service) IngestCompletion(ctx context.Context, req IngestCompletionRequest) (Task, error) {
	if req.TenantID == "" {
		return Task{}, ErrInvalidArgument
	}
	if req.Leads == nil && req.Research == nil {
		return Task{}, ErrInvalidArgument
	}

	if req.FromAddress == "" {
		req.FromAddress = "voice-agent@system"
	}
	if req.ToAddress == "" {
		req.ToAddress = "unknown-prospect"
		if req.Leads != nil && req.Leads.Domain != "" {
			req.ToAddress = req.Leads.Domain
		}
	}
	company := ""
	if req.Leads != nil {
		company = req.Leads.Company
	}
	if req.Subject == "" {
		if company != "" {
			req.Subject = "Voice Agent Call - " + company
		} else {
			req.Subject = "Voice Agent Call - Unknown Company"
		}
	}
	if req.Content == "" {
		if company != "" {
			req.Content = "Voice agent completed call with " + company
		} else {
			req.Content = "Voice agent completed call with prospect"
		}
	}
	if req.SubmissionType == "" {
		req.SubmissionType = "voice_agent_completion"
	}

	now := s.clock().UTC()
	task := Task{
		ID:             uuid.NewString(),
		TenantID:       req.TenantID,
		Type:           TaskTypeCall,
		Status:         TaskStatusCompleted,
		Priority:       PriorityMedium,
		FromAddress:    req.FromAddress,
		ToAddress:      req.ToAddress,
		Subject:        req.Subject,
		Content:        req.Content,
		AgentCallID:    req.AgentCallID,
		SubmissionType: req.SubmissionType,
		CompletedAt:    now.UnixMilli(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.Leads != nil {
		l := req.Leads
		task.LeadsCompany = l.Company
		task.LeadsDomain = l.Domain
		task.LeadsAddress = l.Address
		task.LeadsIndustry = l.Industry
		task.LeadsHoursOfOperation = l.HoursOfOperation
		task.LeadsInterestLevel = l.InterestLevel
		task.LeadsPainPoints = l.PainPoints
		task.LeadsNextSteps = l.NextSteps
		task.LeadsNotes = l.Notes
		if l.InterestLevel == "high" {
			task.Priority = PriorityHigh
		}
	}
	if req.Research != nil {
		r := req.Research
		task.ResearchCompanyOverview = marshalList(r.CompanyOverview)
		task.ResearchPainPoints = marshalList(r.PainPoints)
		task.ResearchKeyPeople = marshalList(r.KeyPeople)
		task.ResearchSalesOpportunities = marshalList(r.SalesOpportunities)
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (Task, error) {
	if id == "" {
		return Task{}, ErrInvalidArgument
	}
	return s.store.FindTaskByID(ctx, id)
}

func (s *Service) GetTaskByAgentCallID(ctx context.Context, agentCallID string) (Task, error) {
	if agentCallID == "" {
		return Task{}, ErrInvalidArgument
	}
	return s.store.FindTaskByAgentCallID(ctx, agentCallID)
}

func (s *Service) ListTasks(ctx context.Context, tenantID string, limit int) ([]Task, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListTasksByTenant(ctx, tenantID, limit)
}

// ListActiveCalls reports the call tasks the poll supervisor should track.
func (s *Service) ListActiveCalls(ctx context.Context) ([]Task, error) {
	return s.store.ListInProgressCalls(ctx)
}

// ListStaleCalls reports in-progress call tasks untouched since the cutoff.
func (s *Service) ListStaleCalls(ctx context.Context, cutoff time.Time) ([]Task, error) {
	return s.store.ListStaleInProgressCalls(ctx, cutoff)
}

func (s *Service) mirrorWriteFailed(ctx context.Context, t Task, cause error) {
	utils.MirrorWriteFailures.Inc()
	s.log.Error("task mirror write failed", "task_id", t.ID, "agent_call_id", t.AgentCallID, "error", cause)
	if s.auditor == nil {
		return
	}
	if err := s.auditor.MirrorWriteFailed(ctx, t.TenantID, t.ID, t.AgentCallID, cause.Error()); err != nil {
		s.log.Warn("audit append failed", "type", "mirror_write_failed", "error", err)
	}
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(b)
}
