package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
)

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// IdentityCheck runs after a token verified, e.g. to reject disabled accounts.
type IdentityCheck func(ctx context.Context, identity *Identity) error

// ErrIdentityRejected is returned by identity checks that deny an otherwise valid token.
var ErrIdentityRejected = errors.New("auth: identity rejected")

// Authenticator guards admin routes. Verifiers are tried in order; the first one that
// accepts the token wins.
type Authenticator struct {
	verifiers []TokenVerifier
	checks    []IdentityCheck
}

type Option func(*Authenticator)

func WithVerifier(v TokenVerifier) Option {
	return func(a *Authenticator) {
		if v != nil {
			a.verifiers = append(a.verifiers, v)
		}
	}
}

func WithIdentityCheck(check IdentityCheck) Option {
	return func(a *Authenticator) {
		if check != nil {
			a.checks = append(a.checks, check)
		}
	}
}

func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Require authenticates the bearer token and, when roles are given, demands one of them.
func (a *Authenticator) Require(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := tokenFromRequest(r)
			if !ok {
				writeAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			identity, err := a.authenticate(ctx, token)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					writeAuthError(ctx, w, http.StatusUnauthorized, "token_expired", "token expired")
				case errors.Is(err, ErrIdentityRejected):
					writeAuthError(ctx, w, http.StatusForbidden, "account_disabled", "account is not allowed to sign in")
				default:
					requestctx.Logger(ctx).Debug("token rejected", zap.Error(err))
					writeAuthError(ctx, w, http.StatusUnauthorized, "invalid_token", "token verification failed")
				}
				return
			}
			if len(roles) > 0 && !identity.HasAnyRole(roles...) {
				writeAuthError(ctx, w, http.StatusForbidden, "insufficient_role", "identity does not have the required role")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, token string) (*Identity, error) {
	if a == nil || len(a.verifiers) == 0 {
		return nil, ErrTokenInvalid
	}
	var lastErr error = ErrTokenInvalid
	for _, verifier := range a.verifiers {
		identity, err := verifier.Verify(ctx, token)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				return nil, err
			}
			lastErr = err
			continue
		}
		for _, check := range a.checks {
			if err := check(ctx, identity); err != nil {
				return nil, err
			}
		}
		return identity, nil
	}
	return nil, lastErr
}

// tokenFromRequest reads the bearer token. Browsers cannot set headers on WebSocket
// handshakes, so upgrade requests may pass it as ?access_token= instead.
func tokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return "", false
	}
	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	return token, token != ""
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	}
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}
