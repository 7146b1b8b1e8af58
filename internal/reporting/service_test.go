package reporting

import (
	"context"
	"testing"
	"time"

	"voicedesk/internal/billing"
	"voicedesk/internal/tasks"
)

func TestReporting_TenantIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Tasks = []tasks.Task{
		{ID: "t1", TenantID: "a", Type: tasks.TaskTypeCall, Status: tasks.TaskStatusCompleted, CallDurationSeconds: 30, CreatedAt: now},
		{ID: "t2", TenantID: "b", Type: tasks.TaskTypeCall, Status: tasks.TaskStatusCompleted, CallDurationSeconds: 50, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.TasksSummary(context.Background(), TasksSummaryRequest{TenantID: "a", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalTasks != 1 {
		t.Fatalf("expected 1 task, got %d", out.TotalTasks)
	}
	if out.TotalCallSeconds != 30 {
		t.Fatalf("expected 30s, got %d", out.TotalCallSeconds)
	}
}

func TestReporting_TasksSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Tasks = []tasks.Task{
		{ID: "t1", TenantID: "a", Type: tasks.TaskTypeCall, Status: tasks.TaskStatusCompleted, CallDurationSeconds: 30, AudioFileID: "f1", LeadsCompany: "Acme", CreatedAt: now},
		{ID: "t2", TenantID: "a", Type: tasks.TaskTypeCall, Status: tasks.TaskStatusInProgress, CreatedAt: now},
		{ID: "t3", TenantID: "a", Type: tasks.TaskTypeCall, Status: tasks.TaskStatusFailed, CreatedAt: now},
		{ID: "t4", TenantID: "a", Type: tasks.TaskTypeEmail, Status: tasks.TaskStatusPending, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.TasksSummary(context.Background(), TasksSummaryRequest{TenantID: "a", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalTasks != 4 || out.CallTasks != 3 || out.EmailTasks != 1 {
		t.Fatalf("unexpected type counts: %+v", out)
	}
	if out.CompletedTasks != 1 || out.InProgressTasks != 1 || out.FailedTasks != 1 || out.PendingTasks != 1 {
		t.Fatalf("unexpected status counts: %+v", out)
	}
	if out.RecordedCalls != 1 || out.LeadsCaptured != 1 {
		t.Fatalf("unexpected enrichment counts: %+v", out)
	}
	if out.AverageCallSeconds != 10 {
		t.Fatalf("expected average 10s across 3 calls, got %d", out.AverageCallSeconds)
	}
}

func TestReporting_SpendSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Usage = []billing.UsageEntry{
		{ID: "u1", TenantID: "a", Type: billing.EntryTypeCallUsage, AgentCallID: "ac_1", AmountCents: 42, DurationSeconds: 30, CreatedAt: now},
		{ID: "u2", TenantID: "a", Type: billing.EntryTypeCallUsage, AgentCallID: "ac_2", AmountCents: 18, DurationSeconds: 90, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{TenantID: "a", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCents != 60 || out.CallCount != 2 || out.TotalSeconds != 120 {
		t.Fatalf("unexpected spend: %+v", out)
	}
	if out.AverageCentsPerCall != 30 {
		t.Fatalf("expected 30 cents/call, got %d", out.AverageCentsPerCall)
	}
}

func TestReporting_RejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()

	if _, err := svc.TasksSummary(context.Background(), TasksSummaryRequest{TenantID: "a"}); err != ErrInvalidRequest {
		t.Fatalf("missing range: got %v", err)
	}
	if _, err := svc.TasksSummary(context.Background(), TasksSummaryRequest{TenantID: "a", Range: TimeRange{From: now, To: now.Add(-time.Hour)}}); err != ErrInvalidRequest {
		t.Fatalf("inverted range: got %v", err)
	}
	if _, err := svc.SpendSummary(context.Background(), SpendSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now}}); err != ErrInvalidRequest {
		t.Fatalf("missing tenant: got %v", err)
	}
}
