package tasks

import (
	"context"
	"errors"
	"testing"

	"voicedesk/internal/audit"
	"voicedesk/internal/voice"
	"voicedesk/pkg/blob"
)

type fakeProvider struct {
	healthErr error
	placeFn   func(ctx context.Context, req voice.PlaceCallRequest) (voice.PlaceCallResult, error)
	getFn     func(ctx context.Context, agentCallID string) (voice.CallDetail, error)
	audioFn   func(ctx context.Context, agentCallID string) (voice.Audio, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return f.healthErr }

func (f *fakeProvider) PlaceCall(ctx context.Context, req voice.PlaceCallRequest) (voice.PlaceCallResult, error) {
	if f.placeFn == nil {
		return voice.PlaceCallResult{}, errors.New("unexpected PlaceCall")
	}
	return f.placeFn(ctx, req)
}

func (f *fakeProvider) GetCall(ctx context.Context, agentCallID string) (voice.CallDetail, error) {
	if f.getFn == nil {
		return voice.CallDetail{}, errors.New("unexpected GetCall")
	}
	return f.getFn(ctx, agentCallID)
}

func (f *fakeProvider) GetCallAudio(ctx context.Context, agentCallID string) (voice.Audio, error) {
	if f.audioFn == nil {
		return voice.Audio{}, errors.New("unexpected GetCallAudio")
	}
	return f.audioFn(ctx, agentCallID)
}

func TestInitiateCall_RejectsInvalidArgs(t *testing.T) {
	svc := NewService(nil, &fakeProvider{}, nil, nil, nil, nil, nil)

	if _, err := svc.InitiateCall(context.Background(), InitiateCallRequest{To: "+15551234567"}); err != ErrInvalidArgument {
		t.Fatalf("missing tenant: got %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.InitiateCall(context.Background(), InitiateCallRequest{TenantID: "t1"}); err != ErrInvalidArgument {
		t.Fatalf("missing destination: got %v, want ErrInvalidArgument", err)
	}
}

func TestInitiateCall_FailsBeforeDialWhenProviderUnhealthy(t *testing.T) {
	placed := false
	provider := &fakeProvider{
		healthErr: errors.New("missing credentials"),
		placeFn: func(ctx context.Context, req voice.PlaceCallRequest) (voice.PlaceCallResult, error) {
			placed = true
			return voice.PlaceCallResult{}, nil
		},
	}
	svc := NewService(nil, provider, nil, nil, nil, nil, nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{TenantID: "t1", To: "+15551234567"})
	if err == nil {
		t.Fatalf("expected error from unhealthy provider")
	}
	if placed {
		t.Fatalf("no dial should be attempted when the provider health check fails")
	}
}

func TestInitiateCall_VendorErrorPropagates(t *testing.T) {
	vendorErr := &voice.APIError{Operation: "place call", StatusCode: 429}
	provider := &fakeProvider{
		placeFn: func(ctx context.Context, req voice.PlaceCallRequest) (voice.PlaceCallResult, error) {
			return voice.PlaceCallResult{}, vendorErr
		},
	}
	svc := NewService(nil, provider, nil, nil, nil, nil, nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{TenantID: "t1", To: "+15551234567"})
	if code, ok := voice.StatusCodeOf(err); !ok || code != 429 {
		t.Fatalf("expected vendor 429 to propagate, got %v", err)
	}
}

func TestRefreshStatus_RequiresCallID(t *testing.T) {
	svc := NewService(nil, &fakeProvider{}, nil, nil, nil, nil, nil)
	if _, err := svc.RefreshStatus(context.Background(), "", false); err != ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestRefreshStatus_VendorErrorPropagates(t *testing.T) {
	provider := &fakeProvider{
		getFn: func(ctx context.Context, agentCallID string) (voice.CallDetail, error) {
			return voice.CallDetail{}, &voice.APIError{Operation: "get call", StatusCode: 404}
		},
	}
	svc := NewService(nil, provider, nil, nil, nil, nil, nil)

	_, err := svc.RefreshStatus(context.Background(), "ac_missing", false)
	if code, ok := voice.StatusCodeOf(err); !ok || code != 404 {
		t.Fatalf("expected vendor 404 to propagate, got %v", err)
	}
}

func TestFetchAudio_RequiresCallID(t *testing.T) {
	svc := NewService(nil, &fakeProvider{}, nil, nil, nil, nil, nil)
	if _, err := svc.FetchAudio(context.Background(), ""); err != ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestIngestCompletion_RequiresLeadsOrResearch(t *testing.T) {
	svc := NewService(nil, &fakeProvider{}, nil, nil, nil, nil, nil)

	_, err := svc.IngestCompletion(context.Background(), IngestCompletionRequest{TenantID: "t1"})
	if err != ErrInvalidArgument {
		t.Fatalf("neither leads nor research: got %v, want ErrInvalidArgument", err)
	}

	_, err = svc.IngestCompletion(context.Background(), IngestCompletionRequest{Leads: &LeadsInfo{Company: "Acme"}})
	if err != ErrInvalidArgument {
		t.Fatalf("missing tenant: got %v, want ErrInvalidArgument", err)
	}
}

func TestInitiateCall_MirrorsDialingTask(t *testing.T) {
	store := NewMemoryStore()
	provider := &fakeProvider{
		placeFn: func(ctx context.Context, req voice.PlaceCallRequest) (voice.PlaceCallResult, error) {
			return voice.PlaceCallResult{
				AgentCallID:     "ac_1",
				TelephonyCallID: "CA1",
				Raw:             []byte(`{"calls":[{"agent_call_id":"ac_1"}]}`),
			}, nil
		},
	}
	svc := NewService(store, provider, nil, nil, nil, nil, nil)

	task, err := svc.InitiateCall(context.Background(), InitiateCallRequest{TenantID: "t1", To: "+15551234567"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.AgentCallID != "ac_1" || task.Status != TaskStatusInProgress || task.CallStatus != CallStatusDialing {
		t.Fatalf("unexpected task: %+v", task)
	}

	mirrored, err := store.ListTasksByTenant(context.Background(), "t1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mirrored) != 1 {
		t.Fatalf("expected exactly one mirrored task, got %d", len(mirrored))
	}
	if mirrored[0].AgentCallID != "ac_1" || mirrored[0].CallStatus != CallStatusDialing {
		t.Fatalf("unexpected mirror row: %+v", mirrored[0])
	}
}

func TestFetchAudio_LinkedCallNeverRefetches(t *testing.T) {
	store := NewMemoryStore()
	err := store.InsertTask(context.Background(), Task{
		ID: "task1", TenantID: "t1", Type: TaskTypeCall,
		Status: TaskStatusCompleted, AgentCallID: "ac_1",
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	fetches := 0
	provider := &fakeProvider{
		audioFn: func(ctx context.Context, agentCallID string) (voice.Audio, error) {
			fetches++
			return voice.Audio{Bytes: []byte("RIFFxxxx"), ContentType: "audio/wav"}, nil
		},
	}
	svc := NewService(store, provider, blob.NewLocalStore(t.TempDir()), nil, nil, nil, nil)

	first, err := svc.FetchAudio(context.Background(), "ac_1")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected one vendor fetch, got %d", fetches)
	}

	second, err := svc.FetchAudio(context.Background(), "ac_1")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("linked call must not hit the vendor again, fetches = %d", fetches)
	}
	if second.ID != first.ID || second.Path != first.Path {
		t.Fatalf("second retrieval returned a different file: %+v vs %+v", second, first)
	}
}

func TestFetchAudio_UnlinkableCallAuditsAndStillSucceeds(t *testing.T) {
	// No mirror row exists for the call, so the link update matches nothing.
	store := NewMemoryStore()
	repo := audit.NewMemoryRepo()
	provider := &fakeProvider{
		audioFn: func(ctx context.Context, agentCallID string) (voice.Audio, error) {
			return voice.Audio{Bytes: []byte("RIFFxxxx"), ContentType: "audio/wav"}, nil
		},
	}
	svc := NewService(store, provider, blob.NewLocalStore(t.TempDir()), nil, audit.NewService(repo), nil, nil)

	file, err := svc.FetchAudio(context.Background(), "ac_orphan")
	if err != nil {
		t.Fatalf("vendor fetch succeeded, so must the response: %v", err)
	}
	if file.ID == "" || file.Path != audioKey("ac_orphan") {
		t.Fatalf("unexpected file: %+v", file)
	}

	events := repo.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeAudioLinkFailed {
		t.Fatalf("expected one audio_link_failed event, got %+v", events)
	}
	if events[0].AgentCallID != "ac_orphan" {
		t.Fatalf("event not tied to the call: %+v", events[0])
	}
}

func TestIngestCompletion_AppliesAgentDefaults(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeProvider{}, nil, nil, nil, nil, nil)

	task, err := svc.IngestCompletion(context.Background(), IngestCompletionRequest{
		TenantID: "t1",
		Leads:    &LeadsInfo{Company: "Acme Plumbing", Domain: "acmeplumbing.com"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.FromAddress != "voice-agent@system" {
		t.Fatalf("from = %q", task.FromAddress)
	}
	if task.ToAddress != "acmeplumbing.com" {
		t.Fatalf("to = %q", task.ToAddress)
	}
	if task.Subject != "Voice Agent Call - Acme Plumbing" {
		t.Fatalf("subject = %q", task.Subject)
	}
	if task.Content != "Voice agent completed call with Acme Plumbing" {
		t.Fatalf("content = %q", task.Content)
	}
	if task.SubmissionType != "voice_agent_completion" {
		t.Fatalf("submission_type = %q", task.SubmissionType)
	}

	task, err = svc.IngestCompletion(context.Background(), IngestCompletionRequest{
		TenantID: "t1",
		Research: &ResearchInfo{PainPoints: []string{"slow dispatch"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.ToAddress != "unknown-prospect" {
		t.Fatalf("to = %q", task.ToAddress)
	}
	if task.Subject != "Voice Agent Call - Unknown Company" {
		t.Fatalf("subject = %q", task.Subject)
	}
	if task.Content != "Voice agent completed call with prospect" {
		t.Fatalf("content = %q", task.Content)
	}
}

func TestIngestCompletion_KeepsCallerEnvelopeFields(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeProvider{}, nil, nil, nil, nil, nil)

	task, err := svc.IngestCompletion(context.Background(), IngestCompletionRequest{
		TenantID:       "t1",
		FromAddress:    "agent-7@bots",
		ToAddress:      "+15551234567",
		Subject:        "follow up",
		SubmissionType: "manual_review",
		Leads:          &LeadsInfo{Company: "Acme"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.FromAddress != "agent-7@bots" || task.ToAddress != "+15551234567" {
		t.Fatalf("caller addresses overwritten: %+v", task)
	}
	if task.Subject != "follow up" || task.SubmissionType != "manual_review" {
		t.Fatalf("caller envelope overwritten: %+v", task)
	}
}

func TestMarshalList(t *testing.T) {
	if got := marshalList(nil); got != "" {
		t.Fatalf("empty list should serialize to empty string, got %q", got)
	}
	if got := marshalList([]string{"a", "b"}); got != `["a","b"]` {
		t.Fatalf("marshalList = %q", got)
	}
}

func TestAudioKey(t *testing.T) {
	if got := audioKey("ac_1"); got != "calls/ac_1/audio.wav" {
		t.Fatalf("audioKey = %q", got)
	}
}
