package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"voicedesk/internal/tasks"
)

type fakeRefresher struct {
	mu        sync.Mutex
	active    []tasks.Task
	refreshes map[string]int
	terminal  map[string]bool
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{refreshes: map[string]int{}, terminal: map[string]bool{}}
}

func (f *fakeRefresher) setActive(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = f.active[:0]
	for _, id := range ids {
		f.active = append(f.active, tasks.Task{AgentCallID: id, Status: tasks.TaskStatusInProgress})
	}
}

func (f *fakeRefresher) ListActiveCalls(ctx context.Context) ([]tasks.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tasks.Task, len(f.active))
	copy(out, f.active)
	return out, nil
}

func (f *fakeRefresher) RefreshStatus(ctx context.Context, agentCallID string, withAudio bool) (tasks.CallStateEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes[agentCallID]++
	if f.terminal[agentCallID] {
		return tasks.CallStateEnvelope{AgentCallID: agentCallID, Status: tasks.TaskStatusCompleted, Terminal: true}, nil
	}
	return tasks.CallStateEnvelope{AgentCallID: agentCallID, Status: tasks.TaskStatusInProgress}, nil
}

func (f *fakeRefresher) refreshCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes[id]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestSupervisor_PollsActiveCalls(t *testing.T) {
	f := newFakeRefresher()
	f.setActive("ac_1")

	s := NewSupervisor(f, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return f.refreshCount("ac_1") >= 2 })

	cancel()
	<-done
	if got := len(s.Tracked()); got != 0 {
		t.Fatalf("expected no tracked handles after shutdown, got %d", got)
	}
}

func TestSupervisor_StopsWhenCallTurnsTerminal(t *testing.T) {
	f := newFakeRefresher()
	f.setActive("ac_1")
	f.mu.Lock()
	f.terminal["ac_1"] = true
	f.mu.Unlock()

	s := NewSupervisor(f, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return f.refreshCount("ac_1") >= 1 })
	waitFor(t, 2*time.Second, func() bool { return len(s.Tracked()) == 0 })

	// Terminal handles must not poll again.
	count := f.refreshCount("ac_1")
	time.Sleep(100 * time.Millisecond)
	if f.refreshCount("ac_1") != count {
		t.Fatalf("terminal call kept polling")
	}
}

func TestSupervisor_DropsCallsLeavingActiveSet(t *testing.T) {
	f := newFakeRefresher()
	f.setActive("ac_1", "ac_2")

	s := NewSupervisor(f, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return len(s.Tracked()) == 2 })

	f.setActive("ac_2")
	waitFor(t, 2*time.Second, func() bool {
		tracked := s.Tracked()
		return len(tracked) == 1 && tracked[0] == "ac_2"
	})
}
