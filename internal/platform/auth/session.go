package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultSessionTTL    = 12 * time.Hour
	defaultSessionIssuer = "review-site"
	minSessionSecretLen  = 32
)

var (
	// ErrTokenExpired signals an expired session or ID token.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a malformed or unverifiable token.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrWeakSessionSecret is returned when the signing secret is too short.
	ErrWeakSessionSecret = errors.New("auth: session secret must be at least 32 bytes")
)

// SessionSubject is the account data embedded in a session token.
type SessionSubject struct {
	AccountID string
	Email     string
	Role      string
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session tokens for admin accounts.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  func() time.Time
}

// SessionOption customises a SessionManager.
type SessionOption func(*SessionManager)

func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithSessionIssuer(issuer string) SessionOption {
	return func(m *SessionManager) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			m.issuer = issuer
		}
	}
}

func WithSessionClock(clock func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewSessionManager(secret []byte, opts ...SessionOption) (*SessionManager, error) {
	if len(secret) < minSessionSecretLen {
		return nil, ErrWeakSessionSecret
	}
	m := &SessionManager{
		secret: append([]byte(nil), secret...),
		ttl:    defaultSessionTTL,
		issuer: defaultSessionIssuer,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Issue signs a token for subject and returns it with its expiry.
func (m *SessionManager) Issue(subject SessionSubject) (string, time.Time, error) {
	role := NormalizeRole(subject.Role)
	if strings.TrimSpace(subject.AccountID) == "" || role == "" {
		return "", time.Time{}, fmt.Errorf("auth: session subject requires account id and role")
	}
	now := m.clock().UTC()
	expires := now.Add(m.ttl)
	claims := sessionClaims{
		Email: subject.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.AccountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session: %w", err)
	}
	return signed, expires, nil
}

// Verify implements TokenVerifier for session tokens.
func (m *SessionManager) Verify(_ context.Context, token string) (*Identity, error) {
	var claims sessionClaims
	parser := jwt.Parser{
		ValidMethods: []string{jwt.SigningMethodHS256.Alg()},
	}
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	role := NormalizeRole(claims.Role)
	if claims.Subject == "" || role == "" {
		return nil, fmt.Errorf("%w: missing subject or role", ErrTokenInvalid)
	}
	identity := &Identity{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Role:      role,
		Provider:  ProviderSession,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
