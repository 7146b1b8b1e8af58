package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"voicedesk/internal/billing"
	"voicedesk/internal/tasks"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
// It enforces tenant isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Tasks []tasks.Task
	Usage []billing.UsageEntry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListTasks(ctx context.Context, tenantID string, from, to time.Time) ([]tasks.Task, error) {
	if tenantID == "" {
		return nil, errors.New("tenant_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tasks.Task, 0)
	for _, t := range r.Tasks {
		if t.TenantID != tenantID {
			continue
		}
		if !t.CreatedAt.IsZero() {
			if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *MemoryRepo) ListUsage(ctx context.Context, tenantID string, from, to time.Time) ([]billing.UsageEntry, error) {
	if tenantID == "" {
		return nil, errors.New("tenant_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]billing.UsageEntry, 0)
	for _, e := range r.Usage {
		if e.TenantID != tenantID {
			continue
		}
		if !e.CreatedAt.IsZero() {
			if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}
