package audit

import "time"

// Event is an immutable, append-only record of a sync anomaly.
//
// The vendor-is-truth contract means persistence failures are swallowed at
// the HTTP boundary: the vendor may show a call as placed or completed while
// the local task mirror is stale or missing. These events make that
// inconsistency window observable instead of silently logged.
//
// Invariants:
// - Events are never updated or deleted.
// - Appending is best-effort; no vendor-facing flow blocks on audit failures.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id,omitempty" db:"tenant_id"`

	Type EventType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the event type).
	TaskID      string `json:"task_id,omitempty" db:"task_id"`
	AgentCallID string `json:"agent_call_id,omitempty" db:"agent_call_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeMirrorWriteFailed: a task create/update against the local
	// store failed after the vendor operation succeeded.
	EventTypeMirrorWriteFailed EventType = "mirror_write_failed"

	// EventTypeAudioLinkFailed: the recording was stored but the relational
	// link to its task did not take.
	EventTypeAudioLinkFailed EventType = "audio_link_failed"

	// EventTypeMissingCallID: the vendor accepted a dial but returned no call
	// identifier; a failed placeholder task records the fact.
	EventTypeMissingCallID EventType = "missing_call_id"

	// EventTypeReconcileRepair: the staleness sweep brought a stuck task back
	// in line with vendor truth.
	EventTypeReconcileRepair EventType = "reconcile_repair"
)
