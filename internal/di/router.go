package di

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/handlers"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/observability"
)

const rateLimitWindow = time.Minute

// Router assembles the HTTP handler: shared middleware, health endpoints, the public API
// and the authenticated back office.
func (c *Container) Router(logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = c.logger
	}
	cfg := c.Config
	svc := c.Services
	projectID := traceProjectID(cfg.Firebase.ProjectID, cfg.Firestore.ProjectID)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.ClientIPMiddleware(cfg.Server.TrustProxy),
		handlers.LocaleMiddleware(c.Locales),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(c.build),
		handlers.WithHealthSystemService(svc.System),
	)

	var sessions handlers.SessionIssuer
	if c.Sessions != nil {
		sessions = c.Sessions
	}
	contactLimiter := handlers.NewWindowRateLimiter(cfg.RateLimits.ContactPerMinute, rateLimitWindow, c.clock)
	loginLimiter := handlers.NewWindowRateLimiter(cfg.RateLimits.LoginPerMinute, rateLimitWindow, c.clock)

	public := handlers.NewPublicHandlers(
		handlers.WithPublicReviews(svc.Reviews),
		handlers.WithPublicArticles(svc.Articles),
		handlers.WithPublicScripts(svc.Scripts),
		handlers.WithPublicContent(svc.Content),
	)
	contacts := handlers.NewContactHandlers(svc.Contacts, contactLimiter)
	accounts := handlers.NewAccountHandlers(svc.Accounts, sessions, loginLimiter)
	content := handlers.NewAdminContentHandlers(svc.Reviews, svc.Articles)
	scripts := handlers.NewAdminScriptHandlers(svc.Scripts)
	media := handlers.NewAdminMediaHandlers(svc.Media, cfg.Storage.MaxUploadBytes)
	preview := handlers.NewRenderHandlers(svc.Preview, nil)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(health),
		handlers.WithRequestTimeout(cfg.Server.WriteTimeout),
		handlers.WithPublicRoutes(public.Routes, contacts.PublicRoutes, accounts.PublicRoutes),
		handlers.WithAdminRoutes(content.Routes, scripts.Routes, contacts.AdminRoutes, accounts.AdminRoutes, media.Routes, preview.Routes),
	}
	if c.Authenticator != nil {
		opts = append(opts, handlers.WithAdminMiddlewares(c.Authenticator.Require(auth.RoleEditor)))
	}
	if c.MediaDir != "" {
		opts = append(opts, handlers.WithAdditionalRoutes(mediaFiles(c.MediaDir)))
	}
	return handlers.NewRouter(opts...)
}

func mediaFiles(dir string) handlers.RouteRegistrar {
	return func(r chi.Router) {
		files := http.StripPrefix(localMediaURL+"/", http.FileServer(http.Dir(dir)))
		r.Get(localMediaURL+"/*", files.ServeHTTP)
	}
}

func traceProjectID(ids ...string) string {
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}
