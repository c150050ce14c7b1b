package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const maxLoginBodySize = 4 * 1024

// SessionIssuer signs admin session tokens; auth.SessionManager satisfies it.
type SessionIssuer interface {
	Issue(subject auth.SessionSubject) (string, time.Time, error)
}

// AccountHandlers serves password sign-in, the current identity and account management.
type AccountHandlers struct {
	accounts services.AccountService
	sessions SessionIssuer
	limiter  RateLimiter
}

func NewAccountHandlers(accounts services.AccountService, sessions SessionIssuer, limiter RateLimiter) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, sessions: sessions, limiter: limiter}
}

// PublicRoutes registers POST /auth/login. Nothing is registered when sessions are disabled.
func (h *AccountHandlers) PublicRoutes(r chi.Router) {
	if r == nil || h.sessions == nil {
		return
	}
	r.With(limitByClientIP(h.limiter, "login")).Post("/auth/login", h.login)
}

// AdminRoutes registers /me for every signed-in identity and /accounts for admins.
func (h *AccountHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/me", h.me)
	r.Route("/accounts", func(rt chi.Router) {
		rt.Use(requireRole(auth.RoleAdmin))
		rt.Get("/", h.list)
		rt.Post("/", h.create)
		rt.Get("/{accountID}", h.get)
		rt.Patch("/{accountID}", h.update)
		rt.Delete("/{accountID}", h.delete)
	})
}

// requireRole rejects identities, already authenticated upstream, that lack role.
func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			if !identity.HasRole(role) {
				httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "identity does not have the required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt string         `json:"expires_at"`
	Account   accountPayload `json:"account"`
}

func (h *AccountHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil || h.sessions == nil {
		accountErrors.unavailable(ctx, w)
		return
	}
	var req loginRequest
	if !decodeJSONBody(w, r, maxLoginBodySize, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, "email and password are required", http.StatusBadRequest))
		return
	}

	account, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			requestctx.Logger(ctx).Warn("login rejected", zap.String("reason", "invalid_credentials"))
			httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
		case errors.Is(err, services.ErrAccountDisabled):
			requestctx.Logger(ctx).Warn("login rejected", zap.String("reason", "disabled"))
			httpx.WriteError(ctx, w, httpx.NewError("account_disabled", "account is not allowed to sign in", http.StatusForbidden))
		default:
			accountErrors.write(ctx, w, err)
		}
		return
	}

	token, expires, err := h.sessions.Issue(auth.SessionSubject{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
	})
	if err != nil {
		requestctx.Logger(ctx).Error("issue session failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("session_error", "failed to issue session", http.StatusInternalServerError))
		return
	}
	requestctx.Logger(ctx).Info("login succeeded", zap.String("accountId", account.ID))
	writeJSONResponse(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: formatTime(expires),
		Account:   buildAccountPayload(account),
	})
}

type identityPayload struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	Provider  string `json:"provider"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (h *AccountHandlers) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	writeJSONResponse(w, http.StatusOK, identityPayload{
		AccountID: identity.AccountID,
		Email:     identity.Email,
		Role:      identity.Role,
		Provider:  identity.Provider,
		ExpiresAt: formatTime(identity.ExpiresAt),
	})
}

type accountPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Disabled    bool   `json:"disabled"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func buildAccountPayload(account services.Account) accountPayload {
	return accountPayload{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Role:        account.Role,
		Disabled:    account.Disabled,
		LastLoginAt: formatTimePtr(account.LastLoginAt),
		CreatedAt:   formatTime(account.CreatedAt),
		UpdatedAt:   formatTime(account.UpdatedAt),
	}
}

type accountListResponse struct {
	Items         []accountPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *AccountHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		accountErrors.unavailable(ctx, w)
		return
	}
	pager, ok := pagerFromRequest(w, r)
	if !ok {
		return
	}
	page, err := h.accounts.List(ctx, pager)
	if err != nil {
		accountErrors.write(ctx, w, err)
		return
	}
	resp := accountListResponse{Items: make([]accountPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, account := range page.Items {
		resp.Items = append(resp.Items, buildAccountPayload(account))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AccountHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		accountErrors.unavailable(ctx, w)
		return
	}
	account, err := h.accounts.Get(ctx, strings.TrimSpace(chi.URLParam(r, "accountID")))
	if err != nil {
		accountErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAccountPayload(account))
}

type createAccountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

func (h *AccountHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		accountErrors.unavailable(ctx, w)
		return
	}
	var req createAccountRequest
	if !decodeJSONBody(w, r, defaultBodyLimit, &req) {
		return
	}
	account, err := h.accounts.Create(ctx, services.CreateAccountCommand{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Password:    req.Password,
	})
	if err != nil {
		accountErrors.write(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("account created", zap.String("accountId", account.ID), zap.String("role", account.Role))
	writeJSONResponse(w, http.StatusCreated, buildAccountPayload(account))
}

type updateAccountRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	Password    *string `json:"password"`
	Disabled    *bool   `json:"disabled"`
}

func (h *AccountHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		accountErrors.unavailable(ctx, w)
		return
	}
	var req updateAccountRequest
	if !decodeJSONBody(w, r, defaultBodyLimit, &req) {
		return
	}
	account, err := h.accounts.Update(ctx, services.UpdateAccountCommand{
		AccountID:   strings.TrimSpace(chi.URLParam(r, "accountID")),
		ActorID:     actorID(r),
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Password:    req.Password,
		Disabled:    req.Disabled,
	})
	if err != nil {
		accountErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAccountPayload(account))
}

func (h *AccountHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		accountErrors.unavailable(ctx, w)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "accountID"))
	if err := h.accounts.Delete(ctx, services.DeleteAccountCommand{AccountID: id, ActorID: actorID(r)}); err != nil {
		accountErrors.write(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("account deleted", zap.String("accountId", id))
	w.WriteHeader(http.StatusNoContent)
}

func actorID(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return ""
	}
	return identity.AccountID
}
