package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

var testSessionSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSessions(t *testing.T) *auth.SessionManager {
	t.Helper()
	sessions, err := auth.NewSessionManager(testSessionSecret, auth.WithSessionTTL(time.Hour))
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	return sessions
}

func loginRequestBody(email, password string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"`+email+`","password":"`+password+`"}`))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoginIssuesVerifiableSession(t *testing.T) {
	sessions := newTestSessions(t)
	accounts := &stubAccountService{account: services.Account{ID: "acc_1", Email: "ed@example.com", Role: auth.RoleEditor}}
	router := chi.NewRouter()
	NewAccountHandlers(accounts, sessions, nil).PublicRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, loginRequestBody("ed@example.com", "correct horse"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["token_type"] != "Bearer" {
		t.Fatalf("unexpected token type: %v", body["token_type"])
	}
	token, _ := body["token"].(string)
	identity, err := sessions.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if identity.AccountID != "acc_1" || identity.Role != auth.RoleEditor {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	account, _ := body["account"].(map[string]any)
	if _, leaked := account["password_hash"]; leaked {
		t.Fatalf("password hash must never be returned")
	}
}

func TestLoginErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid credentials", err: services.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
		{name: "disabled", err: services.ErrAccountDisabled, status: http.StatusForbidden, code: "account_disabled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := chi.NewRouter()
			NewAccountHandlers(&stubAccountService{authErr: tc.err}, newTestSessions(t), nil).PublicRoutes(router)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, loginRequestBody("ed@example.com", "wrong"))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if body := decodeBody(t, rr); body["error"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	router := chi.NewRouter()
	NewAccountHandlers(&stubAccountService{}, newTestSessions(t), nil).PublicRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, loginRequestBody("", ""))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLoginNotRegisteredWithoutSessions(t *testing.T) {
	router := chi.NewRouter()
	NewAccountHandlers(&stubAccountService{}, nil, nil).PublicRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, loginRequestBody("ed@example.com", "pw"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAccountsRequireAdmin(t *testing.T) {
	h := NewAccountHandlers(&stubAccountService{account: services.Account{ID: "acc_1", Role: auth.RoleAdmin}}, nil, nil)

	editor := withIdentity(&auth.Identity{AccountID: "acc_2", Role: auth.RoleEditor}, h.AdminRoutes)
	rr := httptest.NewRecorder()
	editor.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for editor, got %d", rr.Code)
	}

	admin := withIdentity(&auth.Identity{AccountID: "acc_1", Role: auth.RoleAdmin}, h.AdminRoutes)
	rr = httptest.NewRecorder()
	admin.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteOwnAccountRejected(t *testing.T) {
	accounts := &stubAccountService{}
	h := NewAccountHandlers(accounts, nil, nil)
	router := withIdentity(&auth.Identity{AccountID: "acc_1", Role: auth.RoleAdmin}, h.AdminRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/accounts/acc_1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/accounts/acc_9", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(accounts.deleted) != 1 || accounts.deleted[0].ActorID != "acc_1" {
		t.Fatalf("expected actor recorded, got %+v", accounts.deleted)
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	h := NewAccountHandlers(nil, nil, nil)
	router := withIdentity(&auth.Identity{AccountID: "acc_2", Email: "ed@example.com", Role: auth.RoleEditor, Provider: auth.ProviderSession}, h.AdminRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["account_id"] != "acc_2" || body["role"] != auth.RoleEditor || body["provider"] != auth.ProviderSession {
		t.Fatalf("unexpected identity payload: %v", body)
	}
}
