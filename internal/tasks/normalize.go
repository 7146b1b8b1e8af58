package tasks

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"voicedesk/internal/voice"
)

// CallUpdate is the normalized field set a status refresh writes to a Task.
// It is always applied as a full replace: repeated polling converges to the
// latest vendor truth with no accumulation of stale data.
type CallUpdate struct {
	Status     TaskStatus
	CallStatus string

	DurationSeconds int
	StartMs         int64
	EndMs           int64
	EndReason       string

	Transcript     string
	TranscriptJSON string
	Summary        string
	Sentiment      string
	Successful     *bool
	CostCents      int
	RecordingURL   string

	// Metadata is the raw vendor payload, JSON-serialized.
	Metadata string

	// Terminal reports whether the vendor status is terminal. CompletedAtMs
	// is stamped only for terminal success, and only if the task has no
	// completion timestamp yet (COALESCE at the write site), so re-polling a
	// terminal call never moves it.
	Terminal      bool
	CompletedAtMs int64
}

// MapVendorStatus classifies the vendor's call-status vocabulary into the
// local four-state model. Unknown and in-flight statuses stay in_progress.
func MapVendorStatus(vendorStatus string) (status TaskStatus, terminal bool) {
	switch vendorStatus {
	case CallStatusCompleted, CallStatusEnded:
		return TaskStatusCompleted, true
	case CallStatusFailed, CallStatusError:
		return TaskStatusFailed, true
	default:
		return TaskStatusInProgress, false
	}
}

// FlattenTranscript renders transcript turns as newline-joined "role: text"
// lines for display and search.
func FlattenTranscript(turns []voice.TranscriptTurn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// ParseVendorTime parses a vendor datetime string into epoch milliseconds.
// Returns 0 for empty or unparseable input.
func ParseVendorTime(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// DurationSeconds computes the rounded call duration from epoch-millisecond
// timestamps. 0 when either end is unknown.
func DurationSeconds(startMs, endMs int64) int {
	if startMs == 0 || endMs == 0 || endMs < startMs {
		return 0
	}
	return int(math.Round(float64(endMs-startMs) / 1000.0))
}

// BuildCallUpdate derives the full normalized replacement set from a vendor
// call detail. It is a pure function of the vendor payload, which is what
// makes concurrent last-write-wins refreshes harmless.
func BuildCallUpdate(detail voice.CallDetail, now time.Time) CallUpdate {
	status, terminal := MapVendorStatus(detail.Status)

	startMs := ParseVendorTime(detail.StartTime)
	endMs := ParseVendorTime(detail.EndTime)

	u := CallUpdate{
		Status:          status,
		CallStatus:      detail.Status,
		DurationSeconds: DurationSeconds(startMs, endMs),
		StartMs:         startMs,
		EndMs:           endMs,
		EndReason:       detail.EndReason,
		Transcript:      FlattenTranscript(detail.Transcript),
		Summary:         detail.Summary,
		Sentiment:       detail.Sentiment,
		Successful:      detail.Successful,
		CostCents:       detail.CostCents,
		RecordingURL:    detail.RecordingURL,
		Metadata:        string(detail.Raw),
		Terminal:        terminal,
	}
	if len(detail.Transcript) > 0 {
		if b, err := json.Marshal(detail.Transcript); err == nil {
			u.TranscriptJSON = string(b)
		}
	}
	if terminal && status == TaskStatusCompleted {
		u.CompletedAtMs = now.UnixMilli()
	}
	return u
}
