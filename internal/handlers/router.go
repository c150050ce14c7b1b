package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	timeout     time.Duration
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	public           []RouteRegistrar
	admin            []RouteRegistrar
	adminMiddlewares []func(http.Handler) http.Handler
	additional       []RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware, the public API under
// /api/v1 and the authenticated back office under /api/v1/admin.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r.Use(middleware.RequestID, middleware.RealIP)
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	for _, registrar := range cfg.additional {
		if registrar != nil {
			registrar(r)
		}
	}

	r.Route(cfg.basePath, func(api chi.Router) {
		api.Group(func(public chi.Router) {
			if cfg.timeout > 0 {
				public.Use(middleware.Timeout(cfg.timeout))
			}
			for _, registrar := range cfg.public {
				if registrar != nil {
					registrar(public)
				}
			}
		})

		api.Route("/admin", func(admin chi.Router) {
			// Without an authenticator the back office is not served at all.
			if len(cfg.adminMiddlewares) == 0 || len(cfg.admin) == 0 {
				registerNotImplemented(admin, "admin")
				return
			}
			for _, mw := range cfg.adminMiddlewares {
				if mw != nil {
					admin.Use(mw)
				}
			}
			for _, registrar := range cfg.admin {
				if registrar != nil {
					registrar(admin)
				}
			}
		})
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithRequestTimeout bounds public requests. Admin routes are not bounded since the live
// preview socket outlives any request timeout. Zero disables the bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(cfg *routerConfig) {
		cfg.timeout = timeout
	}
}

// WithPublicRoutes adds registrars for unauthenticated endpoints under /api/v1.
func WithPublicRoutes(reg ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.public = append(cfg.public, reg...)
	}
}

// WithAdminRoutes adds registrars for the /api/v1/admin group.
func WithAdminRoutes(reg ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.admin = append(cfg.admin, reg...)
	}
}

// WithAdminMiddlewares configures middlewares applied to the /admin group, normally the
// authenticator.
func WithAdminMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.adminMiddlewares = append(cfg.adminMiddlewares, mw...)
	}
}

// WithAdditionalRoutes registers routes at the root, outside the /api/v1 prefix.
func WithAdditionalRoutes(reg ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.additional = append(cfg.additional, reg...)
	}
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
