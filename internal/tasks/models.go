package tasks

import "time"

// Task represents one tenant-scoped call/contact event and its lifecycle.
//
// Multi-tenant invariant: TenantID is required on every row.
//
// Correlation invariant: AgentCallID is immutable once set and is the only
// reliable join key back to vendor state. Never re-derive it from address or
// timing.
//
// The call-specific fields are a mirror of vendor truth: every status refresh
// replaces the full normalized set, never merges. Concurrent refreshes
// therefore converge (all writers derive identical values from the same
// vendor payload).
type Task struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// CreatedByMemberID is empty for system-generated tasks (webhook ingestion).
	CreatedByMemberID  string `json:"created_by,omitempty" db:"created_by_member_id"`
	AssignedMemberID   string `json:"assigned_to,omitempty" db:"assigned_member_id"`

	Type     TaskType   `json:"type" db:"type"`
	Status   TaskStatus `json:"status" db:"status"`
	Priority Priority   `json:"priority" db:"priority"`

	FromAddress string `json:"from_address" db:"from_address"`
	ToAddress   string `json:"to_address" db:"to_address"`
	Subject     string `json:"subject,omitempty" db:"subject"`
	Content     string `json:"content,omitempty" db:"content"`

	// Metadata is the JSON-serialized last raw vendor response.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	// AgentCallID is the vendor call identifier; TelephonyCallID is the
	// secondary vendor-assigned telephony leg id.
	AgentCallID     string `json:"agent_call_id,omitempty" db:"agent_call_id"`
	TelephonyCallID string `json:"telephony_call_id,omitempty" db:"telephony_call_id"`

	CallStatus    string        `json:"call_status,omitempty" db:"call_status"`
	CallDirection CallDirection `json:"call_direction,omitempty" db:"call_direction"`

	// CallDurationSeconds is always recomputed from the start/end timestamps,
	// never trusted as a standalone vendor field.
	CallDurationSeconds int `json:"call_duration,omitempty" db:"call_duration"`

	// Epoch milliseconds; 0 means unknown.
	CallStartMs int64 `json:"call_start_time,omitempty" db:"call_start_time"`
	CallEndMs   int64 `json:"call_end_time,omitempty" db:"call_end_time"`

	CallEndReason string `json:"call_end_reason,omitempty" db:"call_end_reason"`

	// CallTranscript is the flattened "role: text" form; TranscriptJSON keeps
	// the structured turn list.
	CallTranscript string `json:"call_transcript,omitempty" db:"call_transcript"`
	TranscriptJSON string `json:"transcript_json,omitempty" db:"transcript_json"`

	CallSummary    string `json:"call_summary,omitempty" db:"call_summary"`
	CallSentiment  string `json:"call_sentiment,omitempty" db:"call_sentiment"`
	CallSuccessful *bool  `json:"call_successful,omitempty" db:"call_successful"`
	CallCostCents  int    `json:"call_cost,omitempty" db:"call_cost_cents"`

	CallRecordingURL string `json:"call_recording_url,omitempty" db:"call_recording_url"`

	// AudioFileID links at most one stored recording; first successful
	// retrieval wins, never re-fetched once linked.
	AudioFileID string `json:"audio_file_id,omitempty" db:"audio_file_id"`

	// Lead information from voice agent completion.
	LeadsCompany          string `json:"leads_company,omitempty" db:"leads_company"`
	LeadsDomain           string `json:"leads_domain,omitempty" db:"leads_domain"`
	LeadsAddress          string `json:"leads_address,omitempty" db:"leads_address"`
	LeadsIndustry         string `json:"leads_industry,omitempty" db:"leads_industry"`
	LeadsHoursOfOperation string `json:"leads_hours_of_operation,omitempty" db:"leads_hours_of_operation"`
	LeadsInterestLevel    string `json:"leads_interest_level,omitempty" db:"leads_interest_level"`
	LeadsPainPoints       string `json:"leads_pain_points,omitempty" db:"leads_pain_points"`
	LeadsNextSteps        string `json:"leads_next_steps,omitempty" db:"leads_next_steps"`
	LeadsNotes            string `json:"leads_notes,omitempty" db:"leads_notes"`

	// Research information from voice agent completion. JSON-array columns.
	ResearchCompanyOverview    string `json:"research_company_overview,omitempty" db:"research_company_overview"`
	ResearchPainPoints         string `json:"research_pain_points,omitempty" db:"research_pain_points"`
	ResearchKeyPeople          string `json:"research_key_people,omitempty" db:"research_key_people"`
	ResearchSalesOpportunities string `json:"research_sales_opportunities,omitempty" db:"research_sales_opportunities"`

	SubmissionType string `json:"submission_type,omitempty" db:"submission_type"`

	// Epoch milliseconds; 0 means unset.
	ScheduledAt int64 `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt   int64 `json:"started_at,omitempty" db:"started_at"`
	CompletedAt int64 `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TaskType string

const (
	TaskTypeCall  TaskType = "call"
	TaskTypeEmail TaskType = "email"
	TaskTypeOther TaskType = "other"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// Vendor call-status vocabulary. Mapped many-to-one onto TaskStatus by
// MapVendorStatus.
const (
	CallStatusDialing    = "dialing"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusEnded      = "ended"
	CallStatusFailed     = "failed"
	CallStatusError      = "error"
)

// AudioFile is a stored call recording, keyed by a path derived from the
// vendor call id.
type AudioFile struct {
	ID          string    `json:"id" db:"id"`
	Path        string    `json:"path" db:"path"`
	URL         string    `json:"url" db:"url"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
