package reporting

import (
	"context"
	"database/sql"
	"time"

	"voicedesk/internal/billing"
	"voicedesk/internal/tasks"
)

// PostgresRepo reads summary inputs straight from the tasks and usage_ledger
// tables. Aggregation happens in the service so the memory repo and this one
// stay interchangeable.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListTasks(ctx context.Context, tenantID string, from, to time.Time) ([]tasks.Task, error) {
	const q = `
SELECT id, tenant_id, type, status, call_duration, call_recording_url,
       COALESCE(audio_file_id, ''), leads_company, leads_interest_level, created_at
FROM tasks
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		var t tasks.Task
		err := rows.Scan(
			&t.ID, &t.TenantID, &t.Type, &t.Status,
			&t.CallDurationSeconds, &t.CallRecordingURL, &t.AudioFileID,
			&t.LeadsCompany, &t.LeadsInterestLevel, &t.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListUsage(ctx context.Context, tenantID string, from, to time.Time) ([]billing.UsageEntry, error) {
	const q = `
SELECT id, tenant_id, type, agent_call_id, amount_cents, duration_seconds, created_at
FROM usage_ledger
WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.UsageEntry
	for rows.Next() {
		var e billing.UsageEntry
		err := rows.Scan(
			&e.ID, &e.TenantID, &e.Type, &e.AgentCallID,
			&e.AmountCents, &e.DurationSeconds, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
