package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessions(t *testing.T, opts ...SessionOption) *SessionManager {
	t.Helper()
	sessions, err := NewSessionManager([]byte(testSecret), opts...)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	return sessions
}

func serve(t *testing.T, handler http.Handler, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Code >= 400 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
	}
	return rec, body
}

func TestRequireAcceptsSessionToken(t *testing.T) {
	sessions := newTestSessions(t)
	token, expires, err := sessions.Issue(SessionSubject{AccountID: "acc_1", Email: "ed@example.com", Role: "Editor"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry, got %s", expires)
	}

	var got *Identity
	authn := NewAuthenticator(WithVerifier(sessions))
	handler := authn.Require(RoleEditor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	rec, _ := serve(t, handler, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.AccountID != "acc_1" || got.Role != RoleEditor || got.Provider != ProviderSession {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestRequireRejectsMissingAndInsufficientTokens(t *testing.T) {
	sessions := newTestSessions(t)
	authn := NewAuthenticator(WithVerifier(sessions))
	handler := authn.Require(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))

	rec, body := serve(t, handler, "")
	if rec.Code != http.StatusUnauthorized || body["error"] != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %d %v", rec.Code, body)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}

	rec, body = serve(t, handler, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized || body["error"] != "invalid_token" {
		t.Fatalf("expected invalid_token, got %d %v", rec.Code, body)
	}

	editorToken, _, err := sessions.Issue(SessionSubject{AccountID: "acc_2", Role: RoleEditor})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, body = serve(t, handler, editorToken)
	if rec.Code != http.StatusForbidden || body["error"] != "insufficient_role" {
		t.Fatalf("expected insufficient_role, got %d %v", rec.Code, body)
	}
}

func TestRequireReportsExpiredSession(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	sessions := newTestSessions(t, WithSessionClock(func() time.Time { return past }), WithSessionTTL(time.Minute))
	token, _, err := sessions.Issue(SessionSubject{AccountID: "acc_1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := NewAuthenticator(WithVerifier(sessions)).Require()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec, body := serve(t, handler, token)
	if rec.Code != http.StatusUnauthorized || body["error"] != "token_expired" {
		t.Fatalf("expected token_expired, got %d %v", rec.Code, body)
	}
}

func TestRequireRunsIdentityChecks(t *testing.T) {
	sessions := newTestSessions(t)
	token, _, _ := sessions.Issue(SessionSubject{AccountID: "acc_disabled", Role: RoleAdmin})

	check := func(_ context.Context, identity *Identity) error {
		if identity.AccountID == "acc_disabled" {
			return ErrIdentityRejected
		}
		return nil
	}
	handler := NewAuthenticator(WithVerifier(sessions), WithIdentityCheck(check)).Require()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec, body := serve(t, handler, token)
	if rec.Code != http.StatusForbidden || body["error"] != "account_disabled" {
		t.Fatalf("expected account_disabled, got %d %v", rec.Code, body)
	}
}

type stubIDTokens struct {
	token *firebaseauth.Token
	err   error
}

func (s stubIDTokens) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func TestRequireFallsBackToFirebase(t *testing.T) {
	sessions := newTestSessions(t)
	firebaseVerifier := NewFirebaseVerifier(stubIDTokens{token: &firebaseauth.Token{
		UID:     "fb-uid",
		Expires: time.Now().Add(time.Hour).Unix(),
		Claims:  map[string]any{"role": []any{"viewer", "admin"}, "email": "owner@example.com"},
	}})

	var got *Identity
	handler := NewAuthenticator(WithVerifier(sessions), WithVerifier(firebaseVerifier)).
		Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	rec, _ := serve(t, handler, "firebase-id-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.AccountID != "fb-uid" || got.Provider != ProviderFirebase || got.Email != "owner@example.com" {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestFirebaseVerifierRequiresRoleClaim(t *testing.T) {
	v := NewFirebaseVerifier(stubIDTokens{token: &firebaseauth.Token{UID: "x", Claims: map[string]any{}}})
	if _, err := v.Verify(context.Background(), "t"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong horse battery"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestNewSessionManagerRejectsWeakSecret(t *testing.T) {
	if _, err := NewSessionManager([]byte("short")); !errors.Is(err, ErrWeakSessionSecret) {
		t.Fatalf("expected ErrWeakSessionSecret, got %v", err)
	}
}

func TestRequireAcceptsQueryTokenOnlyForUpgrades(t *testing.T) {
	sessions := newTestSessions(t)
	token, _, err := sessions.Issue(SessionSubject{AccountID: "acc_1", Role: RoleEditor})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	handler := NewAuthenticator(WithVerifier(sessions)).Require(RoleEditor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	plain := httptest.NewRequest(http.MethodGet, "/api/v1/admin/render/live?access_token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, plain)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for query token without upgrade, got %d", rec.Code)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/api/v1/admin/render/live?access_token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, upgrade)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected upgrade request to authenticate, got %d", rec.Code)
	}
}

func TestSessionIssuerMustMatch(t *testing.T) {
	staging := newTestSessions(t, WithSessionIssuer("review-site-staging"))
	token, _, err := staging.Issue(SessionSubject{AccountID: "acc_1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := staging.Verify(context.Background(), token); err != nil {
		t.Fatalf("expected same-issuer token to verify, got %v", err)
	}
	if _, err := newTestSessions(t).Verify(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign issuer, got %v", err)
	}
}

type deadlineIDTokens struct {
	token    *firebaseauth.Token
	deadline *time.Time
}

func (d deadlineIDTokens) VerifyIDToken(ctx context.Context, _ string) (*firebaseauth.Token, error) {
	*d.deadline, _ = ctx.Deadline()
	return d.token, nil
}

func TestFirebaseVerifierOptions(t *testing.T) {
	var deadline time.Time
	v := NewFirebaseVerifier(deadlineIDTokens{
		token:    &firebaseauth.Token{UID: "fb-uid", Claims: map[string]any{"site_role": "editor", "role": "admin"}},
		deadline: &deadline,
	}, WithRoleClaim("site_role"), WithFirebaseTimeout(time.Minute), WithRoleClaim(" "))

	start := time.Now()
	identity, err := v.Verify(context.Background(), "t")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Role != RoleEditor {
		t.Fatalf("expected role from custom claim, got %s", identity.Role)
	}
	if deadline.Before(start.Add(50*time.Second)) || deadline.After(time.Now().Add(time.Minute)) {
		t.Fatalf("expected a one minute verify deadline, got %v", deadline.Sub(start))
	}
}
