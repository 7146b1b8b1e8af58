package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"voicedesk/internal/voice"
)

func TestMapVendorStatus(t *testing.T) {
	cases := []struct {
		vendor   string
		want     TaskStatus
		terminal bool
	}{
		{"completed", TaskStatusCompleted, true},
		{"ended", TaskStatusCompleted, true},
		{"failed", TaskStatusFailed, true},
		{"error", TaskStatusFailed, true},
		{"dialing", TaskStatusInProgress, false},
		{"in_progress", TaskStatusInProgress, false},
		{"some_new_vendor_state", TaskStatusInProgress, false},
		{"", TaskStatusInProgress, false},
	}
	for _, c := range cases {
		got, terminal := MapVendorStatus(c.vendor)
		if got != c.want || terminal != c.terminal {
			t.Fatalf("MapVendorStatus(%q) = (%v, %v), want (%v, %v)", c.vendor, got, terminal, c.want, c.terminal)
		}
	}
}

func TestFlattenTranscript(t *testing.T) {
	turns := []voice.TranscriptTurn{
		{Role: "agent", Text: "hi"},
		{Role: "user", Text: "hello"},
	}
	if got := FlattenTranscript(turns); got != "agent: hi\nuser: hello" {
		t.Fatalf("FlattenTranscript = %q", got)
	}
	if got := FlattenTranscript(nil); got != "" {
		t.Fatalf("FlattenTranscript(nil) = %q, want empty", got)
	}
}

func TestParseVendorTime(t *testing.T) {
	if got := ParseVendorTime("2026-01-15T10:00:00Z"); got != 1768471200000 {
		t.Fatalf("ParseVendorTime = %d", got)
	}
	if got := ParseVendorTime(""); got != 0 {
		t.Fatalf("empty input should parse to 0, got %d", got)
	}
	if got := ParseVendorTime("yesterday at noon"); got != 0 {
		t.Fatalf("garbage input should parse to 0, got %d", got)
	}
}

func TestDurationSeconds(t *testing.T) {
	cases := []struct {
		start, end int64
		want       int
	}{
		{1000, 31000, 30},
		{1000, 31400, 30},
		{1000, 31600, 31},
		{0, 31000, 0},
		{1000, 0, 0},
		{31000, 1000, 0},
	}
	for _, c := range cases {
		if got := DurationSeconds(c.start, c.end); got != c.want {
			t.Fatalf("DurationSeconds(%d, %d) = %d, want %d", c.start, c.end, got, c.want)
		}
	}
}

func TestBuildCallUpdate_CompletedCall(t *testing.T) {
	detail := voice.CallDetail{
		AgentCallID: "ac_1",
		Status:      "ended",
		StartTime:   "2026-01-15T10:00:00Z",
		EndTime:     "2026-01-15T10:00:30Z",
		EndReason:   "hangup",
		Transcript: []voice.TranscriptTurn{
			{Role: "agent", Text: "hi"},
			{Role: "user", Text: "hello"},
		},
		Summary:   "short greeting",
		CostCents: 42,
		Raw:       json.RawMessage(`{"status":"ended"}`),
	}
	now := time.Date(2026, 1, 15, 10, 1, 0, 0, time.UTC)

	u := BuildCallUpdate(detail, now)
	if u.Status != TaskStatusCompleted || !u.Terminal {
		t.Fatalf("expected terminal completed, got status=%v terminal=%v", u.Status, u.Terminal)
	}
	if u.CallStatus != "ended" {
		t.Fatalf("raw call status = %q", u.CallStatus)
	}
	if u.DurationSeconds != 30 {
		t.Fatalf("duration = %d, want 30", u.DurationSeconds)
	}
	if u.Transcript != "agent: hi\nuser: hello" {
		t.Fatalf("transcript = %q", u.Transcript)
	}
	if u.TranscriptJSON == "" {
		t.Fatalf("expected structured transcript to be kept")
	}
	if u.CostCents != 42 {
		t.Fatalf("cost = %d", u.CostCents)
	}
	if u.Metadata != `{"status":"ended"}` {
		t.Fatalf("metadata = %q", u.Metadata)
	}
	if u.CompletedAtMs != now.UnixMilli() {
		t.Fatalf("completed at = %d, want %d", u.CompletedAtMs, now.UnixMilli())
	}
}

func TestBuildCallUpdate_FailedCallHasNoCompletion(t *testing.T) {
	u := BuildCallUpdate(voice.CallDetail{Status: "failed"}, time.Now())
	if u.Status != TaskStatusFailed || !u.Terminal {
		t.Fatalf("expected terminal failed, got status=%v terminal=%v", u.Status, u.Terminal)
	}
	if u.CompletedAtMs != 0 {
		t.Fatalf("failed calls must not stamp a completion time, got %d", u.CompletedAtMs)
	}
}

func TestBuildCallUpdate_InFlightCall(t *testing.T) {
	u := BuildCallUpdate(voice.CallDetail{Status: "in_progress", StartTime: "2026-01-15T10:00:00Z"}, time.Now())
	if u.Status != TaskStatusInProgress || u.Terminal {
		t.Fatalf("expected non-terminal in_progress, got status=%v terminal=%v", u.Status, u.Terminal)
	}
	if u.DurationSeconds != 0 || u.EndMs != 0 {
		t.Fatalf("in-flight call should have no duration yet")
	}
}

// Repeated refreshes of a terminal call must produce identical envelopes.
// The envelope carries no server-side timestamps, so this holds even when
// the refreshes happen at different times.
func TestEnvelopeIsStableAcrossRefreshes(t *testing.T) {
	detail := voice.CallDetail{
		Status:    "ended",
		StartTime: "2026-01-15T10:00:00Z",
		EndTime:   "2026-01-15T10:00:30Z",
		Transcript: []voice.TranscriptTurn{
			{Role: "agent", Text: "hi"},
		},
		CostCents: 18,
	}

	first := envelopeFrom("ac_1", BuildCallUpdate(detail, time.Date(2026, 1, 15, 10, 1, 0, 0, time.UTC)))
	second := envelopeFrom("ac_1", BuildCallUpdate(detail, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)))

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("envelopes differ across refreshes:\n%s\n%s", a, b)
	}
}
