package billing

import "time"

// UsageEntry is an immutable, append-only usage-ledger record.
//
// Money invariants:
// - No spend-projection update without a ledger entry.
// - The ledger is append-only.
// - AgentCallID is the idempotency key: a call is charged at most once no
//   matter how many status refreshes observe its completion.
type UsageEntry struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Type EntryType `json:"type" db:"type"`

	// AgentCallID correlates the charge with its vendor call.
	AgentCallID string `json:"agent_call_id" db:"agent_call_id"`

	AmountCents     int64 `json:"amount_cents" db:"amount_cents"`
	DurationSeconds int   `json:"duration_seconds" db:"duration_seconds"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeCallUsage EntryType = "call_usage"
)

// Spend is the per-tenant projection over the usage ledger.
type Spend struct {
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	TotalCents int64     `json:"total_cents" db:"total_cents"`
	CallCount  int64     `json:"call_count" db:"call_count"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
