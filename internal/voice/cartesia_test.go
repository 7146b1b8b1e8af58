package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicedesk/internal/config"
)

func testConfig(apiURL, agentsURL string) config.CartesiaConfig {
	return config.CartesiaConfig{
		APIKey:        "sk_test",
		AgentID:       "agent_1",
		APIBaseURL:    apiURL,
		AgentsBaseURL: agentsURL,
		Version:       "2025-04-16",
	}
}

func TestPlaceCall_ExtractsFirstCallEntry(t *testing.T) {
	var gotAuth, gotVersion string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/twilio/call/outbound" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Cartesia-Version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calls": []map[string]string{{"agent_call_id": "ac_1", "call_sid": "CA1"}},
		})
	}))
	defer srv.Close()

	p := NewCartesiaProvider(testConfig(srv.URL, srv.URL), nil)
	res, err := p.PlaceCall(context.Background(), PlaceCallRequest{To: "+15551234567"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.AgentCallID != "ac_1" || res.TelephonyCallID != "CA1" {
		t.Fatalf("unexpected ids: %q %q", res.AgentCallID, res.TelephonyCallID)
	}
	if len(res.Raw) == 0 {
		t.Fatalf("expected raw payload")
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotVersion != "2025-04-16" {
		t.Fatalf("unexpected version header %q", gotVersion)
	}
	if gotBody["agent_id"] != "agent_1" {
		t.Fatalf("expected agent_id in body, got %v", gotBody)
	}
	targets, _ := gotBody["target_numbers"].([]any)
	if len(targets) != 1 || targets[0] != "+15551234567" {
		t.Fatalf("unexpected target_numbers %v", gotBody["target_numbers"])
	}
}

func TestPlaceCall_EmptyCallListKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"calls": []any{}})
	}))
	defer srv.Close()

	p := NewCartesiaProvider(testConfig(srv.URL, srv.URL), nil)
	res, err := p.PlaceCall(context.Background(), PlaceCallRequest{To: "+15551234567"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.AgentCallID != "" {
		t.Fatalf("expected empty agent call id, got %q", res.AgentCallID)
	}
	if len(res.Raw) == 0 {
		t.Fatalf("expected raw payload to survive")
	}
}

func TestPlaceCall_VendorErrorPropagatesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"agent busy"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCartesiaProvider(testConfig(srv.URL, srv.URL), nil)
	_, err := p.PlaceCall(context.Background(), PlaceCallRequest{To: "+15551234567"})
	if err == nil {
		t.Fatalf("expected error")
	}
	code, ok := StatusCodeOf(err)
	if !ok || code != http.StatusTooManyRequests {
		t.Fatalf("expected vendor 429, got ok=%v code=%d", ok, code)
	}
}

func TestGetCall_DecodesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/calls/ac_1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "ended",
			"start_time": "2026-09-01T10:00:00Z",
			"end_time":   "2026-09-01T10:00:30Z",
			"transcript": []map[string]string{
				{"role": "agent", "text": "hi"},
				{"role": "user", "text": "hello"},
			},
			"summary":   "intro call",
			"sentiment": "positive",
			"cost":      42,
		})
	}))
	defer srv.Close()

	p := NewCartesiaProvider(testConfig(srv.URL, srv.URL), nil)
	detail, err := p.GetCall(context.Background(), "ac_1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if detail.Status != "ended" {
		t.Fatalf("unexpected status %q", detail.Status)
	}
	if detail.AgentCallID != "ac_1" {
		t.Fatalf("expected agent call id backfill, got %q", detail.AgentCallID)
	}
	if len(detail.Transcript) != 2 || detail.Transcript[1].Text != "hello" {
		t.Fatalf("unexpected transcript %v", detail.Transcript)
	}
	if detail.CostCents != 42 {
		t.Fatalf("unexpected cost %d", detail.CostCents)
	}
	if len(detail.Raw) == 0 {
		t.Fatalf("expected raw payload")
	}
}

func TestGetCallAudio_ReturnsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/calls/ac_1/audio" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFxxxx"))
	}))
	defer srv.Close()

	p := NewCartesiaProvider(testConfig(srv.URL, srv.URL), nil)
	audio, err := p.GetCallAudio(context.Background(), "ac_1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(audio.Bytes) != "RIFFxxxx" || audio.ContentType != "audio/wav" {
		t.Fatalf("unexpected audio %q %q", audio.Bytes, audio.ContentType)
	}
}

func TestGetCallAudio_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewCartesiaProvider(testConfig(srv.URL, srv.URL), nil)
	_, err := p.GetCallAudio(context.Background(), "ac_missing")
	code, ok := StatusCodeOf(err)
	if !ok || code != http.StatusNotFound {
		t.Fatalf("expected vendor 404, got ok=%v code=%d err=%v", ok, code, err)
	}
}
