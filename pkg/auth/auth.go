// Package auth verifies HS256 bearer tokens issued by the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds verification parameters.
type Config struct {
	Secret string
	Issuer string
	// Leeway tolerates clock skew between the issuer and this service.
	Leeway time.Duration
}

// Claims is the verified identity attached to a request.
type Claims struct {
	Subject   string
	Role      string
	Name      string
	ExpiresAt time.Time
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type tokenClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Parse verifies signature, issuer and expiry, then requires sub and role.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" || tc.Role == "" {
		return nil, fmt.Errorf("%w: sub and role claims required", ErrInvalidToken)
	}

	return &Claims{
		Subject:   tc.Subject,
		Role:      tc.Role,
		Name:      tc.Name,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// HasRole reports whether the claim set carries the provided role.
func (c *Claims) HasRole(role string) bool {
	return c != nil && c.Role == role
}

type claimsKey struct{}

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}
