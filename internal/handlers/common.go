package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/pagination"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const (
	defaultBodyLimit    = 64 * 1024
	contentBodyLimit    = 2 * 1024 * 1024
	publicCacheControl  = "public, max-age=60, stale-while-revalidate=300"
	invalidRequestCode  = "invalid_request"
	payloadTooLargeCode = "payload_too_large"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds allowed size")
)

// LocaleNegotiator picks a supported locale from an Accept-Language header.
type LocaleNegotiator interface {
	Negotiate(acceptLanguage string) string
}

// LocaleMiddleware stores the negotiated locale in the request context. Public handlers
// use it when the request carries no ?locale= parameter.
func LocaleMiddleware(negotiator LocaleNegotiator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Accept-Language")
			if negotiator == nil || header == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Accept-Language")
			if locale := negotiator.Negotiate(header); locale != "" {
				r = r.WithContext(requestctx.WithLocale(r.Context(), locale))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and decodes the request body into dst, writing the error response
// itself when it returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError(payloadTooLargeCode, "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// pagerFromRequest parses page_size/page_token, writing a 400 when they are malformed.
func pagerFromRequest(w http.ResponseWriter, r *http.Request) (domain.Pagination, bool) {
	pager, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
		return domain.Pagination{}, false
	}
	return pager, true
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func computeETag(parts ...string) string {
	hash := sha256.New()
	for i, part := range parts {
		if i > 0 {
			hash.Write([]byte("|"))
		}
		hash.Write([]byte(part))
	}
	return fmt.Sprintf("W/\"%x\"", hash.Sum(nil))
}

func matchesETag(r *http.Request, etag string) bool {
	if etag == "" || r == nil {
		return false
	}
	raw := r.Header.Get("If-None-Match")
	if strings.TrimSpace(raw) == "" {
		return false
	}
	for _, candidate := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "*" || trimmed == etag {
			return true
		}
	}
	return false
}

// writeCacheable sets the public cache headers and answers 304 when the client already
// holds etag. It reports whether the caller should still write a body.
func writeCacheable(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("Cache-Control", publicCacheControl)
	if etag == "" {
		return true
	}
	w.Header().Set("ETag", etag)
	if matchesETag(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return false
	}
	return true
}

// resourceErrors maps one service's sentinels onto HTTP responses.
type resourceErrors struct {
	resource string
	invalid  error
	notFound error
	conflict error
}

var (
	accountErrors = resourceErrors{resource: "account", invalid: services.ErrAccountInvalidInput, notFound: services.ErrAccountNotFound, conflict: services.ErrAccountConflict}
	reviewErrors  = resourceErrors{resource: "review", invalid: services.ErrReviewInvalidInput, notFound: services.ErrReviewNotFound, conflict: services.ErrReviewConflict}
	articleErrors = resourceErrors{resource: "article", invalid: services.ErrArticleInvalidInput, notFound: services.ErrArticleNotFound, conflict: services.ErrArticleConflict}
	contactErrors = resourceErrors{resource: "contact", invalid: services.ErrContactInvalidInput, notFound: services.ErrContactNotFound, conflict: services.ErrContactConflict}
	scriptErrors  = resourceErrors{resource: "script", invalid: services.ErrScriptInvalidInput, notFound: services.ErrScriptNotFound, conflict: services.ErrScriptConflict}
	mediaErrors   = resourceErrors{resource: "media", invalid: services.ErrMediaInvalidInput, notFound: services.ErrMediaNotFound, conflict: services.ErrMediaConflict}
)

func (e resourceErrors) write(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case e.invalid != nil && errors.Is(err, e.invalid):
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, err.Error(), http.StatusBadRequest))
	case e.notFound != nil && errors.Is(err, e.notFound):
		httpx.WriteError(ctx, w, httpx.NewError(e.resource+"_not_found", e.resource+" not found", http.StatusNotFound))
	case e.conflict != nil && errors.Is(err, e.conflict):
		httpx.WriteError(ctx, w, httpx.NewError(e.resource+"_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUnavailable), isUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError(e.resource+"_service_unavailable", e.resource+" store unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError(e.resource+"_error", "failed to process "+e.resource+" request", http.StatusInternalServerError))
	}
}

func (e resourceErrors) unavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError(e.resource+"_service_unavailable", e.resource+" service unavailable", http.StatusServiceUnavailable))
}

func isUnavailable(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
