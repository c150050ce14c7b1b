package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const (
	maxPreviewRequestSize = 600 * 1024
	liveWriteWait         = 10 * time.Second
	livePongWait          = 60 * time.Second
	livePingPeriod        = livePongWait * 9 / 10
)

// RenderHandlers exposes the editor preview, both as a one-shot POST and as a live
// WebSocket session that re-renders into one container on every edit.
type RenderHandlers struct {
	preview  services.PreviewService
	upgrader websocket.Upgrader
}

// NewRenderHandlers accepts WebSocket upgrades from allowedOrigins. With none given only
// same-host origins are accepted.
func NewRenderHandlers(preview services.PreviewService, allowedOrigins []string) *RenderHandlers {
	h := &RenderHandlers{
		preview: preview,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(allowedOrigins))
		for _, origin := range allowedOrigins {
			allowed[strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		}
	}
	return h
}

func (h *RenderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/render/preview", h.previewOnce)
	r.Get("/render/live", h.live)
}

type previewRequest struct {
	HTML            string   `json:"html"`
	BodyFormat      string   `json:"body_format"`
	ProcessHeadings *bool    `json:"process_headings"`
	Events          []string `json:"events"`
}

func (req previewRequest) command() services.PreviewCommand {
	return services.PreviewCommand{
		HTML:            req.HTML,
		BodyFormat:      req.BodyFormat,
		ProcessHeadings: req.ProcessHeadings,
		Events:          req.Events,
	}
}

type previewResponse struct {
	Markup     string                     `json:"markup"`
	TOC        []tocEntryPayload          `json:"toc"`
	Report     render.Report              `json:"report"`
	Dispatched []services.DispatchOutcome `json:"dispatched"`
}

func buildPreviewResponse(result services.PreviewResult) previewResponse {
	dispatched := result.Dispatched
	if dispatched == nil {
		dispatched = []services.DispatchOutcome{}
	}
	return previewResponse{
		Markup:     result.Markup,
		TOC:        buildTOC(result.Report.Headings),
		Report:     result.Report,
		Dispatched: dispatched,
	}
}

func (h *RenderHandlers) previewOnce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.preview == nil {
		httpx.WriteError(ctx, w, httpx.NewError("preview_unavailable", "preview service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req previewRequest
	if !decodeJSONBody(w, r, maxPreviewRequestSize, &req) {
		return
	}
	result, err := h.preview.Preview(ctx, req.command())
	if err != nil {
		writePreviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPreviewResponse(result))
}

func writePreviewError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPreviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, err.Error(), http.StatusBadRequest))
	case errors.Is(err, render.ErrAttachTimeout), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("render_timeout", "render did not finish in time", http.StatusGatewayTimeout))
	default:
		requestctx.Logger(ctx).Error("preview render failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("render_failed", "failed to render preview", http.StatusInternalServerError))
	}
}

// liveMessage is the frame exchanged on the live preview socket. Clients send "render"
// frames; the server answers each with "result" or "error".
type liveMessage struct {
	Type    string           `json:"type"`
	Seq     int64            `json:"seq,omitempty"`
	Render  *previewRequest  `json:"render,omitempty"`
	Result  *previewResponse `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}

type liveConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *liveConn) write(msg liveMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

func (h *RenderHandlers) live(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.preview == nil {
		httpx.WriteError(ctx, w, httpx.NewError("preview_unavailable", "preview service unavailable", http.StatusServiceUnavailable))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		requestctx.Logger(ctx).Warn("live preview upgrade failed", zap.Error(err))
		return
	}
	logger := requestctx.Logger(ctx).With(zap.String("component", "live_preview"))
	session := h.preview.OpenSession()
	lc := &liveConn{conn: conn}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		cancel()
		session.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxPreviewRequestSize)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	go func() {
		ticker := time.NewTicker(livePingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	logger.Info("live preview opened")
	for {
		var msg liveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("live preview closed unexpectedly", zap.Error(err))
			} else {
				logger.Info("live preview closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))

		reply := h.handleLive(ctx, session, msg)
		if err := lc.write(reply); err != nil {
			logger.Warn("live preview write failed", zap.Error(err))
			return
		}
	}
}

func (h *RenderHandlers) handleLive(ctx context.Context, session services.PreviewSession, msg liveMessage) liveMessage {
	reply := liveMessage{Seq: msg.Seq}
	if msg.Type != "render" || msg.Render == nil {
		reply.Type = "error"
		reply.Error = invalidRequestCode
		reply.Message = `expected {"type":"render","render":{...}}`
		return reply
	}
	result, err := session.Render(ctx, msg.Render.command())
	if err != nil {
		reply.Type = "error"
		switch {
		case errors.Is(err, services.ErrPreviewInvalidInput):
			reply.Error = invalidRequestCode
			reply.Message = err.Error()
		case errors.Is(err, render.ErrAttachTimeout), errors.Is(err, context.DeadlineExceeded):
			reply.Error = "render_timeout"
			reply.Message = "render did not finish in time"
		default:
			requestctx.Logger(ctx).Error("live preview render failed", zap.Error(err))
			reply.Error = "render_failed"
			reply.Message = "failed to render preview"
		}
		return reply
	}
	payload := buildPreviewResponse(result)
	reply.Type = "result"
	reply.Result = &payload
	return reply
}
