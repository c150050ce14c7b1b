package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

func TestNewRouterHealthEndpoints(t *testing.T) {
	router := NewRouter()
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != errorNotFoundCode {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
	if body["request_id"] == nil {
		t.Fatalf("expected request id in error envelope")
	}
}

func TestNewRouterAdminWithoutAuthenticator(t *testing.T) {
	reviews := NewAdminContentHandlers(&stubReviewService{}, nil)
	router := NewRouter(WithAdminRoutes(reviews.Routes))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestNewRouterAdminRequiresToken(t *testing.T) {
	sessions, err := auth.NewSessionManager(testSessionSecret)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	authenticator := auth.NewAuthenticator(auth.WithVerifier(sessions))
	reviews := &stubReviewService{}
	router := NewRouter(
		WithAdminMiddlewares(authenticator.Require(auth.RoleEditor)),
		WithAdminRoutes(NewAdminContentHandlers(reviews, nil).Routes),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	token, _, err := sessions.Issue(auth.SessionSubject{AccountID: "acc_1", Email: "ed@example.com", Role: auth.RoleEditor})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestNewRouterMountsPublicRoutes(t *testing.T) {
	scripts := &stubScriptService{scripts: []services.HeadScript{{ID: "scr_1", Name: "tag", Placement: "head", Enabled: true}}}
	public := NewPublicHandlers(WithPublicScripts(scripts))
	router := NewRouter(WithPublicRoutes(public.Routes), WithRequestTimeout(time.Second))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/scripts", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestNewRouterReadyzUsesSystemService(t *testing.T) {
	system := &stubSystemService{report: services.SystemHealthReport{Status: domain.HealthStatusOK, Checks: map[string]domain.SystemHealthCheck{}}}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(WithHealthSystemService(system))))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
