package auth

import (
	"context"
	"strings"
	"time"
)

// Roles recognised by the admin API.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Identity providers.
const (
	ProviderSession  = "session"
	ProviderFirebase = "firebase"
)

// Identity is the authenticated principal attached to admin requests.
type Identity struct {
	AccountID string
	Email     string
	Role      string
	Provider  string
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role. Admins implicitly hold every role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = NormalizeRole(role)
	if role == "" {
		return false
	}
	current := NormalizeRole(i.Role)
	return current == role || current == RoleAdmin
}

func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// NormalizeRole lower-cases and trims role, returning "" for unknown roles.
func NormalizeRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case RoleAdmin, RoleEditor:
		return r
	default:
		return ""
	}
}

type contextKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
