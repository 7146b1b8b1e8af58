package tenants

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following tables exist:
// - tenants
// - members (email UNIQUE)
//
// Optional text columns are NOT NULL DEFAULT '', matching the tasks tables,
// so rows scan directly into the models.

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const tenantColumns = `
id, name, domain, status, address, industry,
services, service_area, hours_of_operation, after_hours_handling,
lead_capture_config, compliance_settings, preferred_area_codes,
greeting_script, created_at, updated_at`

func scanTenant(row interface{ Scan(dest ...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.Domain, &t.Status, &t.Address, &t.Industry,
		&t.Services, &t.ServiceArea, &t.HoursOfOperation, &t.AfterHoursHandling,
		&t.LeadCaptureConfig, &t.ComplianceSettings, &t.PreferredAreaCodes,
		&t.GreetingScript, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}

func insertTenant(ctx context.Context, db executor, t Tenant) error {
	const q = `
INSERT INTO tenants (` + tenantColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`
	_, err := db.ExecContext(ctx, q,
		t.ID, t.Name, t.Domain, t.Status, t.Address, t.Industry,
		t.Services, t.ServiceArea, t.HoursOfOperation, t.AfterHoursHandling,
		t.LeadCaptureConfig, t.ComplianceSettings, t.PreferredAreaCodes,
		t.GreetingScript, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func findTenantByID(ctx context.Context, db executor, id string) (Tenant, error) {
	const q = `
SELECT ` + tenantColumns + `
FROM tenants
WHERE id = $1
`
	t, err := scanTenant(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func updateTenantProfile(ctx context.Context, db executor, t Tenant) error {
	const q = `
UPDATE tenants SET
  name = $2, domain = $3, address = $4, industry = $5,
  services = $6, service_area = $7, hours_of_operation = $8,
  after_hours_handling = $9, lead_capture_config = $10,
  compliance_settings = $11, preferred_area_codes = $12,
  greeting_script = $13, updated_at = $14
WHERE id = $1
`
	_, err := db.ExecContext(ctx, q,
		t.ID, t.Name, t.Domain, t.Address, t.Industry,
		t.Services, t.ServiceArea, t.HoursOfOperation,
		t.AfterHoursHandling, t.LeadCaptureConfig,
		t.ComplianceSettings, t.PreferredAreaCodes,
		t.GreetingScript, t.UpdatedAt,
	)
	return err
}

const memberColumns = `
id, tenant_id, email, password_hash, first_name, last_name, title,
phone, phone_type, role, status, notification_prefs,
escalation_instructions, created_at, updated_at`

func scanMember(row interface{ Scan(dest ...any) error }) (Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.TenantID, &m.Email, &m.PasswordHash,
		&m.FirstName, &m.LastName, &m.Title,
		&m.Phone, &m.PhoneType, &m.Role, &m.Status,
		&m.NotificationPrefs, &m.EscalationInstructions,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

func insertMember(ctx context.Context, db executor, m Member) error {
	const q = `
INSERT INTO members (` + memberColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`
	_, err := db.ExecContext(ctx, q,
		m.ID, m.TenantID, m.Email, m.PasswordHash,
		m.FirstName, m.LastName, m.Title,
		m.Phone, m.PhoneType, m.Role, m.Status,
		m.NotificationPrefs, m.EscalationInstructions,
		m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func findMemberByEmail(ctx context.Context, db executor, email string) (Member, error) {
	const q = `
SELECT ` + memberColumns + `
FROM members
WHERE email = $1
`
	m, err := scanMember(db.QueryRowContext(ctx, q, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

func findMemberByID(ctx context.Context, db executor, id string) (Member, error) {
	const q = `
SELECT ` + memberColumns + `
FROM members
WHERE id = $1
`
	m, err := scanMember(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

func updateMemberProfile(ctx context.Context, db executor, m Member) error {
	const q = `
UPDATE members SET
  first_name = $2, last_name = $3, title = $4, phone = $5, phone_type = $6,
  notification_prefs = $7, escalation_instructions = $8, updated_at = $9
WHERE id = $1
`
	_, err := db.ExecContext(ctx, q,
		m.ID, m.FirstName, m.LastName, m.Title, m.Phone, m.PhoneType,
		m.NotificationPrefs, m.EscalationInstructions, m.UpdatedAt,
	)
	return err
}

func listMembersByTenant(ctx context.Context, db executor, tenantID string) ([]Member, error) {
	const q = `
SELECT ` + memberColumns + `
FROM members
WHERE tenant_id = $1
ORDER BY created_at
`
	rows, err := db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
