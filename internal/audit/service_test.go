package audit

import (
	"context"
	"testing"
	"time"
)

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	err := svc.MirrorWriteFailed(context.Background(), "t1", "task1", "ac_1", "insert failed")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected created_at %v", e.CreatedAt)
	}
	if e.Type != EventTypeMirrorWriteFailed || e.AgentCallID != "ac_1" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestAppend_RejectsMissingType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{TenantID: "t1"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestListByTenant_FiltersAndBounds(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	_ = svc.MissingCallID(context.Background(), "t1", "task1", "{}")
	_ = svc.MissingCallID(context.Background(), "t2", "task2", "{}")
	_ = svc.ReconcileRepair(context.Background(), "t1", "task3", "ac_3", "in_progress", "completed")

	events, err := svc.ListByTenant(context.Background(), "t1", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for t1, got %d", len(events))
	}
	for _, e := range events {
		if e.TenantID != "t1" {
			t.Fatalf("leaked event from tenant %q", e.TenantID)
		}
	}
}
