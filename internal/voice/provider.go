package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider defines the provider-agnostic interface used by business logic.
//
// Rules:
// - No vendor HTTP calls outside voice adapters.
// - Keep request/response types provider-agnostic; raw vendor payloads travel
//   as json.RawMessage for the task mirror's metadata column.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// PlaceCall dials the destination with the configured agent.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)

	// GetCall fetches the current vendor-side state of a call.
	GetCall(ctx context.Context, agentCallID string) (CallDetail, error)

	// GetCallAudio downloads the finished call's recording bytes.
	GetCallAudio(ctx context.Context, agentCallID string) (Audio, error)
}

type PlaceCallRequest struct {
	// To is the destination number, E.164 where possible.
	To string `json:"to"`

	// Metadata is optional caller-supplied context (company, contact, email)
	// forwarded to the vendor as custom call metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

type PlaceCallResult struct {
	// AgentCallID is the vendor's identifier for the placed call. Empty when
	// the vendor accepted the dial but did not return a call list entry.
	AgentCallID string `json:"agent_call_id"`

	// TelephonyCallID is the secondary telephony leg id (e.g. a Twilio SID).
	TelephonyCallID string `json:"telephony_call_id,omitempty"`

	// Raw is the vendor response body, kept for the task metadata mirror.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// TranscriptTurn is one speaker turn of a call transcript.
type TranscriptTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// CallDetail is the vendor's current view of a call.
//
// StartTime/EndTime stay as vendor datetime strings here; parsing into epoch
// milliseconds belongs to normalization, not the adapter.
type CallDetail struct {
	AgentCallID string `json:"agent_call_id,omitempty"`

	Status    string `json:"status"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	EndReason string `json:"end_reason,omitempty"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Transcript []TranscriptTurn `json:"transcript,omitempty"`
	Summary    string           `json:"summary,omitempty"`
	Sentiment  string           `json:"sentiment,omitempty"`
	Successful *bool            `json:"successful,omitempty"`

	// CostCents is the vendor-reported call cost in cents.
	CostCents int `json:"cost,omitempty"`

	RecordingURL string `json:"recording_url,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type Audio struct {
	Bytes       []byte
	ContentType string
}

// APIError is a non-2xx vendor response. The status code is propagated to
// API callers; the body is logged server-side only.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice: %s failed with vendor status %d", e.Operation, e.StatusCode)
}

// StatusCodeOf returns the vendor status code when err is an APIError.
func StatusCodeOf(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
