package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voicedesk/pkg/utils"

	"github.com/google/uuid"
)

// Service charges completed calls against the tenant usage ledger.
//
// Vendor-reported cost is preferred; when the vendor omits it, cost falls
// back to a flat per-started-minute rate.
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time

	// rateCentsPerMinute is the fallback rate.
	rateCentsPerMinute int64
}

func NewService(db *sql.DB, rateCentsPerMinute int64) *Service {
	if rateCentsPerMinute <= 0 {
		rateCentsPerMinute = 9
	}
	return &Service{db: db, clock: time.Now, rateCentsPerMinute: rateCentsPerMinute}
}

var (
	ErrNotFound        = errors.New("billing: not found")
	ErrInvalidArgument = errors.New("billing: invalid argument")
)

type ChargeCallRequest struct {
	AgentCallID     string `json:"agent_call_id"`
	VendorCostCents int    `json:"vendor_cost_cents"`
	DurationSeconds int    `json:"duration_seconds"`
	Metadata        string `json:"metadata,omitempty"`
}

// ChargeCall records the cost of a completed call exactly once.
// Re-charging the same tenant+call returns the existing ledger entry, which
// keeps concurrent terminal refreshes convergent.
func (s *Service) ChargeCall(ctx context.Context, tenantID string, req ChargeCallRequest) (UsageEntry, Spend, error) {
	if tenantID == "" || req.AgentCallID == "" {
		return UsageEntry{}, Spend{}, ErrInvalidArgument
	}
	if req.VendorCostCents < 0 || req.DurationSeconds < 0 {
		return UsageEntry{}, Spend{}, ErrInvalidArgument
	}

	amount := int64(req.VendorCostCents)
	if amount == 0 {
		amount = s.fallbackCost(req.DurationSeconds)
	}

	now := s.clock().UTC()
	entryID := uuid.NewString()

	var outEntry UsageEntry
	var outSpend Spend

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if existing, ok, err := findEntryByCall(ctx, tx, tenantID, req.AgentCallID); err != nil {
			return err
		} else if ok {
			outEntry = existing
			sp, err := getSpendTx(ctx, tx, tenantID)
			if err != nil {
				return err
			}
			outSpend = sp
			return nil
		}

		entry := UsageEntry{
			ID:              entryID,
			TenantID:        tenantID,
			Type:            EntryTypeCallUsage,
			AgentCallID:     req.AgentCallID,
			AmountCents:     amount,
			DurationSeconds: req.DurationSeconds,
			Metadata:        req.Metadata,
			CreatedAt:       now,
		}
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}

		sp, err := applySpendDelta(ctx, tx, tenantID, amount, now)
		if err != nil {
			return err
		}
		outEntry = entry
		outSpend = sp
		return nil
	})

	return outEntry, outSpend, err
}

func (s *Service) GetSpend(ctx context.Context, tenantID string) (Spend, error) {
	if tenantID == "" {
		return Spend{}, ErrInvalidArgument
	}
	return getSpend(ctx, s.db, tenantID)
}

// fallbackCost bills per started minute.
func (s *Service) fallbackCost(durationSeconds int) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	minutes := int64((durationSeconds + 59) / 60)
	return minutes * s.rateCentsPerMinute
}

func getSpendTx(ctx context.Context, tx *sql.Tx, tenantID string) (Spend, error) {
	const q = `
SELECT tenant_id, total_cents, call_count, updated_at
FROM tenant_spend
WHERE tenant_id = $1
`
	var sp Spend
	err := tx.QueryRowContext(ctx, q, tenantID).Scan(&sp.TenantID, &sp.TotalCents, &sp.CallCount, &sp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Spend{TenantID: tenantID}, nil
		}
		return Spend{}, err
	}
	return sp, nil
}
