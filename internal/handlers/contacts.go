package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const maxContactBodySize = 16 * 1024

// ContactHandlers accepts contact form posts and exposes the inbox to staff.
type ContactHandlers struct {
	contacts services.ContactService
	limiter  RateLimiter
}

func NewContactHandlers(contacts services.ContactService, limiter RateLimiter) *ContactHandlers {
	return &ContactHandlers{contacts: contacts, limiter: limiter}
}

// PublicRoutes registers POST /contacts, rate limited per client address.
func (h *ContactHandlers) PublicRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(limitByClientIP(h.limiter, "contacts")).Post("/contacts", h.submit)
}

// AdminRoutes registers the /contacts inbox endpoints.
func (h *ContactHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/contacts", func(rt chi.Router) {
		rt.Get("/", h.list)
		rt.Get("/{contactID}", h.get)
		rt.Patch("/{contactID}", h.updateStatus)
		rt.Delete("/{contactID}", h.delete)
	})
}

type submitContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Source  string `json:"source"`
	Website string `json:"website"`
}

type contactPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message"`
	Source    string `json:"source,omitempty"`
	Status    string `json:"status"`
	RemoteIP  string `json:"remote_ip,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func buildContactPayload(contact services.Contact) contactPayload {
	return contactPayload{
		ID:        contact.ID,
		Name:      contact.Name,
		Email:     contact.Email,
		Phone:     contact.Phone,
		Subject:   contact.Subject,
		Message:   contact.Message,
		Source:    contact.Source,
		Status:    contact.Status,
		RemoteIP:  contact.RemoteIP,
		CreatedAt: formatTime(contact.CreatedAt),
		UpdatedAt: formatTime(contact.UpdatedAt),
	}
}

func (h *ContactHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contacts == nil {
		contactErrors.unavailable(ctx, w)
		return
	}
	var req submitContactRequest
	if !decodeJSONBody(w, r, maxContactBodySize, &req) {
		return
	}
	source := req.Source
	if strings.TrimSpace(source) == "" {
		source = r.Referer()
	}
	contact, err := h.contacts.Submit(ctx, services.SubmitContactCommand{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Subject:  req.Subject,
		Message:  req.Message,
		Source:   source,
		RemoteIP: requestctx.ClientIP(ctx),
		Website:  req.Website,
	})
	if err != nil {
		contactErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]any{
		"id":         contact.ID,
		"status":     "received",
		"created_at": formatTime(contact.CreatedAt),
	})
}

type contactListResponse struct {
	Items         []contactPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *ContactHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contacts == nil {
		contactErrors.unavailable(ctx, w)
		return
	}
	pager, ok := pagerFromRequest(w, r)
	if !ok {
		return
	}
	page, err := h.contacts.List(ctx, services.ContactListFilter{
		Status:     r.URL.Query().Get("status"),
		Pagination: pager,
	})
	if err != nil {
		contactErrors.write(ctx, w, err)
		return
	}
	resp := contactListResponse{Items: make([]contactPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, contact := range page.Items {
		resp.Items = append(resp.Items, buildContactPayload(contact))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *ContactHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contacts == nil {
		contactErrors.unavailable(ctx, w)
		return
	}
	contact, err := h.contacts.Get(ctx, strings.TrimSpace(chi.URLParam(r, "contactID")))
	if err != nil {
		contactErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildContactPayload(contact))
}

func (h *ContactHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contacts == nil {
		contactErrors.unavailable(ctx, w)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSONBody(w, r, defaultBodyLimit, &req) {
		return
	}
	contact, err := h.contacts.UpdateStatus(ctx, strings.TrimSpace(chi.URLParam(r, "contactID")), req.Status)
	if err != nil {
		contactErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildContactPayload(contact))
}

func (h *ContactHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contacts == nil {
		contactErrors.unavailable(ctx, w)
		return
	}
	if err := h.contacts.Delete(ctx, strings.TrimSpace(chi.URLParam(r, "contactID"))); err != nil {
		contactErrors.write(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
