package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

func contactRequest(body, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://example.test/reviews/broker/acme")
	return req.WithContext(requestctx.WithClientIP(req.Context(), ip))
}

func TestContactSubmitAccepted(t *testing.T) {
	svc := &stubContactService{}
	router := chi.NewRouter()
	NewContactHandlers(svc, nil).PublicRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, contactRequest(`{"name":"Ana","email":"ana@example.com","message":"Hello"}`, "203.0.113.7"))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["id"] != "ctc_1" || body["status"] != "received" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.submitted))
	}
	got := svc.submitted[0]
	if got.RemoteIP != "203.0.113.7" {
		t.Fatalf("expected client ip forwarded, got %q", got.RemoteIP)
	}
	if got.Source != "https://example.test/reviews/broker/acme" {
		t.Fatalf("expected referer as source, got %q", got.Source)
	}
}

func TestContactSubmitInvalid(t *testing.T) {
	router := chi.NewRouter()
	NewContactHandlers(&stubContactService{submitErr: services.ErrContactInvalidInput}, nil).PublicRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, contactRequest(`{"name":"","email":"nope"}`, "203.0.113.7"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, contactRequest(`{"name":`, "203.0.113.7"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rr.Code)
	}
}

func TestContactSubmitRateLimited(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewWindowRateLimiter(2, time.Minute, func() time.Time { return now })
	router := chi.NewRouter()
	NewContactHandlers(&stubContactService{}, limiter).PublicRoutes(router)

	body := `{"name":"Ana","email":"ana@example.com","message":"Hello"}`
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, contactRequest(body, "198.51.100.1"))
		if rr.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, contactRequest(body, "198.51.100.1"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, contactRequest(body, "198.51.100.2"))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("other clients must not be limited, got %d", rr.Code)
	}
}

func TestContactAdminUpdateStatus(t *testing.T) {
	svc := &stubContactService{}
	router := chi.NewRouter()
	NewContactHandlers(svc, nil).AdminRoutes(router)

	req := httptest.NewRequest(http.MethodPatch, "/contacts/ctc_1", strings.NewReader(`{"status":"read"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.status != domain.ContactStatusRead {
		t.Fatalf("expected status read, got %q", svc.status)
	}

	req = httptest.NewRequest(http.MethodPatch, "/contacts/ctc_1", strings.NewReader(`{"status":"spam"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestContactAdminGetMissing(t *testing.T) {
	router := chi.NewRouter()
	NewContactHandlers(&stubContactService{}, nil).AdminRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contacts/ctc_404", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "contact_not_found" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
}
