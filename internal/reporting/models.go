package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TasksSummaryRequest requests aggregated task metrics.
// Tenant isolation: TenantID is required.

type TasksSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type TasksSummary struct {
	TenantID string `json:"tenant_id"`

	TotalTasks      int `json:"total_tasks"`
	PendingTasks    int `json:"pending_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	FailedTasks     int `json:"failed_tasks"`

	CallTasks  int `json:"call_tasks"`
	EmailTasks int `json:"email_tasks"`
	OtherTasks int `json:"other_tasks"`

	TotalCallSeconds   int `json:"total_call_seconds"`
	AverageCallSeconds int `json:"average_call_seconds"`

	RecordedCalls int `json:"recorded_calls"`
	LeadsCaptured int `json:"leads_captured"`
}

// SpendSummaryRequest requests aggregated usage-ledger spend.

type SpendSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type SpendSummary struct {
	TenantID string `json:"tenant_id"`

	TotalCents   int64 `json:"total_cents"`
	CallCount    int   `json:"call_count"`
	TotalSeconds int   `json:"total_seconds"`

	AverageCentsPerCall int64 `json:"average_cents_per_call"`
}
