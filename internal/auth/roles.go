// Package auth adapts the shared bearer-token package to the attendance roles.
package auth

import (
	"context"

	authlib "example.com/attendance/pkg/auth"
)

type (
	Claims = authlib.Claims
	Config = authlib.Config
)

// Roles carried in the "role" claim. The subject claim is the assistant id.
const (
	RoleAdmin     = "admin"
	RoleAssistant = "assistant"
)

// CanMark reports whether the caller may read its schedule and record attendance.
func CanMark(claims *Claims) bool {
	return claims.HasRole(RoleAssistant) || claims.HasRole(RoleAdmin)
}

// IsAdmin reports whether the caller may use the admin surface.
func IsAdmin(claims *Claims) bool {
	return claims.HasRole(RoleAdmin)
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return authlib.WithClaims(ctx, claims)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}
