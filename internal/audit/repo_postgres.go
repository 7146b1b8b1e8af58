package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events.
//
// NOTE: assumes an append-only table audit_events; no UPDATE/DELETE paths
// exist in code, and an INSERT-only policy at the database is recommended.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, tenant_id, type, task_id, agent_call_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.TenantID, e.Type, e.TaskID, e.AgentCallID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Event, error) {
	const q = `
SELECT id, tenant_id, type, task_id, agent_call_id, message, metadata, created_at
FROM audit_events
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Type, &e.TaskID, &e.AgentCallID, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
