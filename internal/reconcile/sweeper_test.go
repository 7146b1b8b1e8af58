package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicedesk/internal/audit"
	"voicedesk/internal/tasks"
)

type fakeSyncer struct {
	stale     []tasks.Task
	terminal  map[string]bool
	refreshed []string
	listErr   error
}

func (f *fakeSyncer) ListStaleCalls(ctx context.Context, cutoff time.Time) ([]tasks.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stale, nil
}

func (f *fakeSyncer) RefreshStatus(ctx context.Context, agentCallID string, withAudio bool) (tasks.CallStateEnvelope, error) {
	f.refreshed = append(f.refreshed, agentCallID)
	if f.terminal[agentCallID] {
		return tasks.CallStateEnvelope{AgentCallID: agentCallID, Status: tasks.TaskStatusCompleted, Terminal: true}, nil
	}
	return tasks.CallStateEnvelope{AgentCallID: agentCallID, Status: tasks.TaskStatusInProgress}, nil
}

func TestSweep_RepairsTerminalStaleCalls(t *testing.T) {
	syncer := &fakeSyncer{
		stale: []tasks.Task{
			{ID: "t1", TenantID: "a", AgentCallID: "ac_1", Status: tasks.TaskStatusInProgress},
			{ID: "t2", TenantID: "a", AgentCallID: "ac_2", Status: tasks.TaskStatusInProgress},
		},
		terminal: map[string]bool{"ac_1": true},
	}
	repo := audit.NewMemoryRepo()
	sw := NewSweeper(syncer, audit.NewService(repo), 10*time.Minute, nil)

	if err := sw.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(syncer.refreshed) != 2 {
		t.Fatalf("expected both stale calls refreshed, got %v", syncer.refreshed)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 repair event, got %d", len(events))
	}
	e := events[0]
	if e.Type != audit.EventTypeReconcileRepair || e.AgentCallID != "ac_1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestSweep_PropagatesListErrors(t *testing.T) {
	syncer := &fakeSyncer{listErr: errors.New("db down")}
	sw := NewSweeper(syncer, nil, time.Minute, nil)
	if err := sw.Sweep(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
