package tenants

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"voicedesk/internal/auth"
	"voicedesk/internal/rbac"
	"voicedesk/internal/tasks"
	"voicedesk/pkg/utils"
)

var (
	ErrNotFound           = errors.New("tenants: not found")
	ErrInvalidArgument    = errors.New("tenants: invalid argument")
	ErrEmailTaken         = errors.New("tenants: email already registered")
	ErrInvalidCredentials = errors.New("tenants: invalid credentials")
)

// CallInitiator is the slice of the tasks service registration needs: the
// demo call placed for a fresh tenant.
type CallInitiator interface {
	InitiateCall(ctx context.Context, req tasks.InitiateCallRequest) (tasks.Task, error)
}

type Service struct {
	db     *sql.DB
	tokens *auth.Manager
	calls  CallInitiator
	clock  func() time.Time
	log    *slog.Logger
}

func NewService(db *sql.DB, tokens *auth.Manager, calls CallInitiator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, tokens: tokens, calls: calls, clock: time.Now, log: log}
}

type RegisterRequest struct {
	TenantName string `json:"tenant_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Industry   string `json:"industry,omitempty"`
}

type RegisterResult struct {
	Tenant Tenant          `json:"tenant"`
	Member Member          `json:"member"`
	Tokens auth.TokenPair  `json:"tokens"`
	Demo   *tasks.Task     `json:"demo_call,omitempty"`
}

// Register creates a tenant with its owner member and, when a phone number
// was given, places the onboarding demo call. The demo call is best-effort:
// a vendor failure does not fail registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.TenantName == "" || req.Email == "" || req.FirstName == "" {
		return RegisterResult{}, ErrInvalidArgument
	}
	if len(req.Password) < 8 {
		return RegisterResult{}, ErrInvalidArgument
	}

	if _, err := findMemberByEmail(ctx, s.db, req.Email); err == nil {
		return RegisterResult{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return RegisterResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, err
	}

	now := s.clock().UTC()
	tenant := Tenant{
		ID:        uuid.NewString(),
		Name:      req.TenantName,
		Status:    TenantStatusActive,
		Industry:  req.Industry,
		CreatedAt: now,
		UpdatedAt: now,
	}
	member := Member{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         rbac.RoleOwner,
		Status:       MemberStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertTenant(ctx, tx, tenant); err != nil {
			return err
		}
		return insertMember(ctx, tx, member)
	})
	if err != nil {
		return RegisterResult{}, err
	}

	pair, err := s.tokens.IssuePair(now, member.ID, tenant.ID, member.Role)
	if err != nil {
		return RegisterResult{}, err
	}

	result := RegisterResult{Tenant: tenant, Member: member, Tokens: pair}

	if req.Phone != "" && s.calls != nil {
		demo, err := s.calls.InitiateCall(ctx, tasks.InitiateCallRequest{
			TenantID: tenant.ID,
			MemberID: member.ID,
			To:       req.Phone,
			Subject:  "Onboarding demo call",
			Metadata: map[string]string{"company": tenant.Name, "contact": member.FirstName},
		})
		if err != nil {
			s.log.Warn("demo call failed during registration", "tenant_id", tenant.ID, "error", err)
		} else {
			result.Demo = &demo
		}
	}

	return result, nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Member, auth.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return Member{}, auth.TokenPair{}, ErrInvalidArgument
	}

	member, err := findMemberByEmail(ctx, s.db, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Member{}, auth.TokenPair{}, ErrInvalidCredentials
		}
		return Member{}, auth.TokenPair{}, err
	}
	if member.Status != MemberStatusActive {
		return Member{}, auth.TokenPair{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(req.Password)) != nil {
		return Member{}, auth.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(s.clock().UTC(), member.ID, member.TenantID, member.Role)
	if err != nil {
		return Member{}, auth.TokenPair{}, err
	}
	return member, pair, nil
}

type AddMemberRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Title     string `json:"title,omitempty"`
	Role      string `json:"role"`
}

func (s *Service) AddMember(ctx context.Context, tenantID string, req AddMemberRequest) (Member, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if tenantID == "" || req.Email == "" || req.FirstName == "" || len(req.Password) < 8 {
		return Member{}, ErrInvalidArgument
	}
	if !rbac.IsKnownRole(req.Role) || req.Role == rbac.RoleSuperAdmin {
		return Member{}, ErrInvalidArgument
	}

	if _, err := findMemberByEmail(ctx, s.db, req.Email); err == nil {
		return Member{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Member{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Member{}, err
	}

	now := s.clock().UTC()
	member := Member{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Title:        req.Title,
		Role:         req.Role,
		Status:       MemberStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := insertMember(ctx, s.db, member); err != nil {
		return Member{}, err
	}
	return member, nil
}

func (s *Service) GetTenant(ctx context.Context, id string) (Tenant, error) {
	if id == "" {
		return Tenant{}, ErrInvalidArgument
	}
	return findTenantByID(ctx, s.db, id)
}

// UpdateTenantProfile replaces the tenant's configuration fields. Identity
// fields (id, status, timestamps) are not caller-controlled.
func (s *Service) UpdateTenantProfile(ctx context.Context, t Tenant) (Tenant, error) {
	if t.ID == "" || t.Name == "" {
		return Tenant{}, ErrInvalidArgument
	}
	current, err := findTenantByID(ctx, s.db, t.ID)
	if err != nil {
		return Tenant{}, err
	}
	t.Status = current.Status
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = s.clock().UTC()
	if err := updateTenantProfile(ctx, s.db, t); err != nil {
		return Tenant{}, err
	}
	return t, nil
}

func (s *Service) GetMember(ctx context.Context, id string) (Member, error) {
	if id == "" {
		return Member{}, ErrInvalidArgument
	}
	return findMemberByID(ctx, s.db, id)
}

func (s *Service) UpdateMemberProfile(ctx context.Context, m Member) (Member, error) {
	if m.ID == "" || m.FirstName == "" {
		return Member{}, ErrInvalidArgument
	}
	current, err := findMemberByID(ctx, s.db, m.ID)
	if err != nil {
		return Member{}, err
	}
	m.TenantID = current.TenantID
	m.Email = current.Email
	m.PasswordHash = current.PasswordHash
	m.Role = current.Role
	m.Status = current.Status
	m.CreatedAt = current.CreatedAt
	m.UpdatedAt = s.clock().UTC()
	if err := updateMemberProfile(ctx, s.db, m); err != nil {
		return Member{}, err
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, tenantID string) ([]Member, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	return listMembersByTenant(ctx, s.db, tenantID)
}
