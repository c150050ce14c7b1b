package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const maxScriptBodySize = 96 * 1024

// AdminScriptHandlers manages the snippets injected into public pages.
type AdminScriptHandlers struct {
	scripts services.ScriptService
}

func NewAdminScriptHandlers(scripts services.ScriptService) *AdminScriptHandlers {
	return &AdminScriptHandlers{scripts: scripts}
}

func (h *AdminScriptHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/scripts", func(rt chi.Router) {
		rt.Get("/", h.list)
		rt.Post("/", h.create)
		rt.Get("/{scriptID}", h.get)
		rt.Put("/{scriptID}", h.update)
		rt.Delete("/{scriptID}", h.delete)
	})
}

type scriptPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Placement string `json:"placement"`
	Code      string `json:"code"`
	Enabled   bool   `json:"enabled"`
	Order     int    `json:"order"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func buildScriptPayload(script services.HeadScript) scriptPayload {
	return scriptPayload{
		ID:        script.ID,
		Name:      script.Name,
		Placement: script.Placement,
		Code:      script.Code,
		Enabled:   script.Enabled,
		Order:     script.Order,
		CreatedAt: formatTime(script.CreatedAt),
		UpdatedAt: formatTime(script.UpdatedAt),
	}
}

type scriptRequest struct {
	Name      string `json:"name"`
	Placement string `json:"placement"`
	Code      string `json:"code"`
	Enabled   *bool  `json:"enabled"`
	Order     int    `json:"order"`
}

// command treats a missing enabled flag as enabled so quick adds go live immediately.
func (req scriptRequest) command() services.UpsertScriptCommand {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return services.UpsertScriptCommand{
		Name:      req.Name,
		Placement: req.Placement,
		Code:      req.Code,
		Enabled:   enabled,
		Order:     req.Order,
	}
}

func (h *AdminScriptHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scripts == nil {
		scriptErrors.unavailable(ctx, w)
		return
	}
	scripts, err := h.scripts.List(ctx, r.URL.Query().Get("placement"))
	if err != nil {
		scriptErrors.write(ctx, w, err)
		return
	}
	items := make([]scriptPayload, 0, len(scripts))
	for _, script := range scripts {
		items = append(items, buildScriptPayload(script))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AdminScriptHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scripts == nil {
		scriptErrors.unavailable(ctx, w)
		return
	}
	script, err := h.scripts.Get(ctx, strings.TrimSpace(chi.URLParam(r, "scriptID")))
	if err != nil {
		scriptErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildScriptPayload(script))
}

func (h *AdminScriptHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scripts == nil {
		scriptErrors.unavailable(ctx, w)
		return
	}
	var req scriptRequest
	if !decodeJSONBody(w, r, maxScriptBodySize, &req) {
		return
	}
	script, err := h.scripts.Create(ctx, req.command())
	if err != nil {
		scriptErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildScriptPayload(script))
}

func (h *AdminScriptHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scripts == nil {
		scriptErrors.unavailable(ctx, w)
		return
	}
	var req scriptRequest
	if !decodeJSONBody(w, r, maxScriptBodySize, &req) {
		return
	}
	script, err := h.scripts.Update(ctx, strings.TrimSpace(chi.URLParam(r, "scriptID")), req.command())
	if err != nil {
		scriptErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildScriptPayload(script))
}

func (h *AdminScriptHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scripts == nil {
		scriptErrors.unavailable(ctx, w)
		return
	}
	if err := h.scripts.Delete(ctx, strings.TrimSpace(chi.URLParam(r, "scriptID"))); err != nil {
		scriptErrors.write(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
