package tenants

import (
	"context"
	"testing"

	"voicedesk/internal/rbac"
)

func TestRegister_RejectsInvalidInput(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	cases := []RegisterRequest{
		{},
		{TenantName: "Acme", Email: "a@b.com", FirstName: "Ann", Password: "short"},
		{TenantName: "Acme", FirstName: "Ann", Password: "longenough"},
		{Email: "a@b.com", FirstName: "Ann", Password: "longenough"},
		{TenantName: "Acme", Email: "a@b.com", Password: "longenough"},
	}
	for i, req := range cases {
		if _, err := svc.Register(context.Background(), req); err != ErrInvalidArgument {
			t.Fatalf("case %d: got %v, want ErrInvalidArgument", i, err)
		}
	}
}

func TestLogin_RejectsEmptyInput(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	if _, _, err := svc.Login(context.Background(), LoginRequest{}); err != ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
	if _, _, err := svc.Login(context.Background(), LoginRequest{Email: "a@b.com"}); err != ErrInvalidArgument {
		t.Fatalf("missing password: got %v, want ErrInvalidArgument", err)
	}
}

func TestAddMember_RejectsBadRoles(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	base := AddMemberRequest{Email: "a@b.com", FirstName: "Ann", Password: "longenough"}

	req := base
	req.Role = "janitor"
	if _, err := svc.AddMember(context.Background(), "t1", req); err != ErrInvalidArgument {
		t.Fatalf("unknown role: got %v, want ErrInvalidArgument", err)
	}

	req = base
	req.Role = rbac.RoleSuperAdmin
	if _, err := svc.AddMember(context.Background(), "t1", req); err != ErrInvalidArgument {
		t.Fatalf("super_admin must not be assignable: got %v, want ErrInvalidArgument", err)
	}
}
