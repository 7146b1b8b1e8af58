package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same link and full-replace
// semantics as PostgresStore. Used in tests.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]Task      // by task id
	audio map[string]AudioFile // by audio file id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]Task),
		audio: make(map[string]AudioFile),
	}
}

func (s *MemoryStore) InsertTask(ctx context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *MemoryStore) FindTaskByID(ctx context.Context, id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) FindTaskByAgentCallID(ctx context.Context, agentCallID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.AgentCallID == agentCallID {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

func (s *MemoryStore) ApplyCallUpdate(ctx context.Context, taskID string, u CallUpdate, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	t.Status = u.Status
	t.CallStatus = u.CallStatus
	t.CallDurationSeconds = u.DurationSeconds
	t.CallStartMs = u.StartMs
	t.CallEndMs = u.EndMs
	t.CallEndReason = u.EndReason
	t.CallTranscript = u.Transcript
	t.TranscriptJSON = u.TranscriptJSON
	t.CallSummary = u.Summary
	t.CallSentiment = u.Sentiment
	t.CallSuccessful = u.Successful
	t.CallCostCents = u.CostCents
	t.CallRecordingURL = u.RecordingURL
	t.Metadata = u.Metadata
	if u.CompletedAtMs > 0 && t.CompletedAt == 0 {
		t.CompletedAt = u.CompletedAtMs
	}
	t.UpdatedAt = now
	s.tasks[taskID] = t
	return nil
}

func (s *MemoryStore) ListTasksByTenant(ctx context.Context, tenantID string, limit int) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListInProgressCalls(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Type == TaskTypeCall && t.Status == TaskStatusInProgress && t.AgentCallID != "" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListStaleInProgressCalls(ctx context.Context, cutoff time.Time) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Type == TaskTypeCall && t.Status == TaskStatusInProgress && t.AgentCallID != "" && t.UpdatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveAudio(ctx context.Context, agentCallID string, f AudioFile, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.AgentCallID != agentCallID {
			continue
		}
		if t.AudioFileID != "" {
			return errAudioNotLinked
		}
		t.AudioFileID = f.ID
		t.UpdatedAt = now
		s.tasks[id] = t
		s.audio[f.ID] = f
		return nil
	}
	// No descriptor is kept when the link fails, matching the transactional
	// rollback in PostgresStore.
	return errAudioNotLinked
}

func (s *MemoryStore) FindAudioByAgentCallID(ctx context.Context, agentCallID string) (AudioFile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.AgentCallID == agentCallID && t.AudioFileID != "" {
			f, ok := s.audio[t.AudioFileID]
			if ok {
				return f, true, nil
			}
		}
	}
	return AudioFile{}, false, nil
}

var _ Store = (*MemoryStore)(nil)
