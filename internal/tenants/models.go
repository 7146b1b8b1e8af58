package tenants

import "time"

// Tenant is one customer account; every task, ledger entry, and audit event
// is scoped to a tenant. Beyond the identity fields this is configuration
// data for the voice agent and the dashboard, not load-bearing state.
type Tenant struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Domain string `json:"domain,omitempty" db:"domain"`
	Status string `json:"status" db:"status"`

	Address  string `json:"address,omitempty" db:"address"`
	Industry string `json:"industry,omitempty" db:"industry"`

	// Services and PreferredAreaCodes are JSON-array columns.
	Services           string `json:"services,omitempty" db:"services"`
	ServiceArea        string `json:"service_area,omitempty" db:"service_area"`
	HoursOfOperation   string `json:"hours_of_operation,omitempty" db:"hours_of_operation"`
	AfterHoursHandling string `json:"after_hours_handling,omitempty" db:"after_hours_handling"`
	LeadCaptureConfig  string `json:"lead_capture_config,omitempty" db:"lead_capture_config"`
	ComplianceSettings string `json:"compliance_settings,omitempty" db:"compliance_settings"`
	PreferredAreaCodes string `json:"preferred_area_codes,omitempty" db:"preferred_area_codes"`
	GreetingScript     string `json:"greeting_script,omitempty" db:"greeting_script"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Member is a human user of a tenant. Role is one of the rbac role names.
type Member struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name,omitempty" db:"last_name"`
	Title     string `json:"title,omitempty" db:"title"`

	Phone     string `json:"phone,omitempty" db:"phone"`
	PhoneType string `json:"phone_type,omitempty" db:"phone_type"`

	Role   string `json:"role" db:"role"`
	Status string `json:"status" db:"status"`

	NotificationPrefs      string `json:"notification_prefs,omitempty" db:"notification_prefs"`
	EscalationInstructions string `json:"escalation_instructions,omitempty" db:"escalation_instructions"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	MemberStatusActive   = "active"
	MemberStatusDisabled = "disabled"
)
