package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"voicedesk/internal/audit"
	"voicedesk/internal/tasks"
	"voicedesk/pkg/utils"
)

// Syncer is the slice of the tasks service the sweep drives.
type Syncer interface {
	ListStaleCalls(ctx context.Context, cutoff time.Time) ([]tasks.Task, error)
	RefreshStatus(ctx context.Context, agentCallID string, withAudio bool) (tasks.CallStateEnvelope, error)
}

// Sweeper periodically re-checks call tasks stuck in_progress against vendor
// truth. The regular poll supervisor already converges healthy calls; the
// sweep exists for the ones it lost (process restarts, swallowed mirror
// writes) so the lossy-mirror model stays observable instead of silent.
type Sweeper struct {
	syncer     Syncer
	auditor    *audit.Service
	staleAfter time.Duration
	clock      func() time.Time
	log        *slog.Logger
}

func NewSweeper(syncer Syncer, auditor *audit.Service, staleAfter time.Duration, log *slog.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		syncer:     syncer,
		auditor:    auditor,
		staleAfter: staleAfter,
		clock:      time.Now,
		log:        log,
	}
}

// Schedule registers the sweep on a cron runner. spec uses cron syntax,
// e.g. "@every 5m".
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if err := s.Sweep(ctx); err != nil {
			s.log.Warn("reconcile sweep failed", "error", err)
		}
	})
}

// Sweep runs one reconciliation round. Every repaired task (a stale
// in_progress row the vendor reports terminal) is audit-logged and counted.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.clock().UTC().Add(-s.staleAfter)
	stale, err := s.syncer.ListStaleCalls(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, t := range stale {
		env, err := s.syncer.RefreshStatus(ctx, t.AgentCallID, true)
		if err != nil {
			s.log.Warn("reconcile refresh failed", "agent_call_id", t.AgentCallID, "error", err)
			continue
		}
		if !env.Terminal {
			continue
		}

		utils.ReconcileRepairsTotal.Inc()
		s.log.Info("reconciled stale call",
			"agent_call_id", t.AgentCallID,
			"task_id", t.ID,
			"from_status", string(t.Status),
			"to_status", string(env.Status),
		)
		if s.auditor != nil {
			if err := s.auditor.ReconcileRepair(ctx, t.TenantID, t.ID, t.AgentCallID, string(t.Status), string(env.Status)); err != nil {
				s.log.Warn("audit append failed", "type", "reconcile_repair", "error", err)
			}
		}
	}
	return nil
}
