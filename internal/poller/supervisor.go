package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voicedesk/internal/tasks"
	"voicedesk/pkg/utils"
)

// Refresher is the slice of the tasks service the supervisor drives.
type Refresher interface {
	ListActiveCalls(ctx context.Context) ([]tasks.Task, error)
	RefreshStatus(ctx context.Context, agentCallID string, withAudio bool) (tasks.CallStateEnvelope, error)
}

// Supervisor keeps one polling handle per in-flight call. Membership is
// decided by the in-progress task set, re-read every sync round: a handle is
// started when a call enters the set and cancelled when it leaves, whatever
// the reason (terminal refresh, reconcile repair, manual intervention).
//
// There is deliberately no per-call attempt ceiling. A call the vendor never
// terminates is polled for the supervisor's lifetime; the reconciliation
// sweep is the place where stuck calls become visible.
type Supervisor struct {
	refresher Refresher
	interval  time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	handles map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(refresher Refresher, interval time.Duration, log *slog.Logger) *Supervisor {
	if interval <= 0 {
		interval = 8 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		refresher: refresher,
		interval:  interval,
		log:       log,
		handles:   map[string]context.CancelFunc{},
	}
}

// Run blocks until ctx is cancelled, reconciling poll handles against the
// in-progress task set every interval. On return every handle has stopped.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.wg.Wait()
			return
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

// sync reconciles the handle map with the current in-progress set.
func (s *Supervisor) sync(ctx context.Context) {
	active, err := s.refresher.ListActiveCalls(ctx)
	if err != nil {
		s.log.Warn("poll membership query failed", "error", err)
		return
	}

	want := make(map[string]struct{}, len(active))
	for _, t := range active {
		want[t.AgentCallID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cancel := range s.handles {
		if _, ok := want[id]; !ok {
			cancel()
			delete(s.handles, id)
		}
	}

	for id := range want {
		if _, ok := s.handles[id]; ok {
			continue
		}
		callCtx, cancel := context.WithCancel(ctx)
		s.handles[id] = cancel
		s.wg.Add(1)
		utils.ActivePolls.Inc()
		go s.poll(callCtx, id)
	}
}

// poll refreshes one call every interval until it turns terminal or the
// handle is cancelled.
func (s *Supervisor) poll(ctx context.Context, agentCallID string) {
	defer s.wg.Done()
	defer utils.ActivePolls.Dec()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			env, err := s.refresher.RefreshStatus(ctx, agentCallID, true)
			if err != nil {
				s.log.Warn("poll refresh failed", "agent_call_id", agentCallID, "error", err)
				continue
			}
			if env.Terminal {
				s.remove(agentCallID)
				return
			}
		}
	}
}

func (s *Supervisor) remove(agentCallID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.handles[agentCallID]; ok {
		cancel()
		delete(s.handles, agentCallID)
	}
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.handles {
		cancel()
		delete(s.handles, id)
	}
}

// Tracked reports the call ids currently being polled.
func (s *Supervisor) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.handles))
	for id := range s.handles {
		out = append(out, id)
	}
	return out
}
