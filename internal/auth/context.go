package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxMemberID ctxKey = iota
	ctxTenantID
	ctxRole
)

func WithIdentity(ctx context.Context, memberID, tenantID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxMemberID, memberID)
	ctx = context.WithValue(ctx, ctxTenantID, tenantID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func MemberID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxMemberID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("member_id not in context")
}

func TenantID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxTenantID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("tenant_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
