package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following tables exist:
// - usage_ledger (immutable append-only; UNIQUE (tenant_id, agent_call_id))
// - tenant_spend (projection)

func findEntryByCall(ctx context.Context, tx *sql.Tx, tenantID, agentCallID string) (UsageEntry, bool, error) {
	const q = `
SELECT id, tenant_id, type, agent_call_id, amount_cents, duration_seconds, metadata, created_at
FROM usage_ledger
WHERE tenant_id = $1 AND agent_call_id = $2
LIMIT 1
`
	var e UsageEntry
	err := tx.QueryRowContext(ctx, q, tenantID, agentCallID).Scan(
		&e.ID, &e.TenantID, &e.Type, &e.AgentCallID,
		&e.AmountCents, &e.DurationSeconds, &e.Metadata, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UsageEntry{}, false, nil
		}
		return UsageEntry{}, false, err
	}
	return e, true, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e UsageEntry) error {
	const q = `
INSERT INTO usage_ledger (id, tenant_id, type, agent_call_id, amount_cents, duration_seconds, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.TenantID, e.Type, e.AgentCallID,
		e.AmountCents, e.DurationSeconds, e.Metadata, e.CreatedAt,
	)
	return err
}

func applySpendDelta(ctx context.Context, tx *sql.Tx, tenantID string, amountCents int64, now time.Time) (Spend, error) {
	const q = `
INSERT INTO tenant_spend (tenant_id, total_cents, call_count, updated_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (tenant_id) DO UPDATE
SET total_cents = tenant_spend.total_cents + EXCLUDED.total_cents,
    call_count = tenant_spend.call_count + 1,
    updated_at = EXCLUDED.updated_at
RETURNING tenant_id, total_cents, call_count, updated_at
`
	var s Spend
	err := tx.QueryRowContext(ctx, q, tenantID, amountCents, now).Scan(
		&s.TenantID, &s.TotalCents, &s.CallCount, &s.UpdatedAt,
	)
	return s, err
}

func getSpend(ctx context.Context, db *sql.DB, tenantID string) (Spend, error) {
	const q = `
SELECT tenant_id, total_cents, call_count, updated_at
FROM tenant_spend
WHERE tenant_id = $1
`
	var s Spend
	err := db.QueryRowContext(ctx, q, tenantID).Scan(&s.TenantID, &s.TotalCents, &s.CallCount, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Spend{TenantID: tenantID}, nil
		}
		return Spend{}, err
	}
	return s, nil
}
