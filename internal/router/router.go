package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"site-inspector/internal/config"
	"site-inspector/internal/handler"
	"site-inspector/internal/metrics"
	"site-inspector/internal/middleware"
	"site-inspector/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Site   *handler.SiteHandler
	Visit  *handler.VisitHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.ClientIP(cfg.TrustedProxies))
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		authed := authMiddleware.RequireAuth
		adminOnly := authMiddleware.RequireRoles(model.RoleAdmin)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.Post("/logout", h.Auth.Logout)
			auth.Post("/forgot-password", h.Auth.ForgotPassword)
			auth.Post("/reset-password", h.Auth.ResetPassword)
			auth.With(authed).Post("/logout-all", h.Auth.LogoutAll)
			auth.With(authed).Get("/me", h.Auth.Me)
			auth.With(authed).Post("/change-password", h.Auth.ChangePassword)
		})

		api.With(authed, adminOnly).Put("/users/{id}/status", h.User.SetStatus)

		api.With(authed, adminOnly).Post("/sites", h.Site.Create)
		api.With(authed).Get("/sites/{id}", h.Site.Get)

		api.With(authed).Post("/visits", h.Visit.Create)
		api.With(authed).Get("/visits/{id}", h.Visit.Get)
		api.With(authed).Put("/visits/{id}", h.Visit.Update)
		api.With(authed).Put("/visits/{id}/status", h.Visit.ChangeStatus)

		api.With(authed, adminOnly).Get("/audit", h.Audit.List)
	})

	return r
}
