package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sotto-note/internal/cache"
	"sotto-note/internal/config"
	"sotto-note/internal/handler"
	"sotto-note/internal/metrics"
	"sotto-note/internal/middleware"
)

type Handlers struct {
	Health    *handler.HealthHandler
	Docs      *handler.DocsHandler
	Auth      *handler.AuthHandler
	State     *handler.StateHandler
	Journal   *handler.JournalHandler
	Breathing *handler.BreathingHandler
	Admin     *handler.AdminHandler
	WS        *handler.WSHandler
}

func New(
	cfg *config.Config,
	sessions *middleware.SessionMiddleware,
	state *cache.UserState,
	m *metrics.Metrics,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders(cfg.Production()))
	r.Use(rateLimitMiddleware.Handler)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	r.With(sessions.OptionalUser).Get("/login", h.Auth.LoginPage)
	r.Post("/login", h.Auth.Login)
	r.Post("/logout", h.Auth.Logout)
	r.Post("/auth/refresh", h.Auth.Refresh)

	r.With(sessions.RequireUser).Get("/dashboard", h.State.Dashboard)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(sessions.RequireUser)
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/ws", h.WS.Serve)
		api.Get("/me", h.State.Me)
		api.Get("/ai/usage", h.State.AIUsage)

		api.Get("/entries", h.Journal.List)
		api.Post("/entries", h.Journal.Create)
		api.Get("/entries/{id}", h.Journal.Get)
		api.Put("/entries/{id}", h.Journal.Update)
		api.Delete("/entries/{id}", h.Journal.Delete)
		api.Post("/entries/{id}/reflection", h.Journal.Reflect)

		api.Get("/breathing/patterns", h.Breathing.List)
		api.Get("/breathing/patterns/{id}", h.Breathing.Get)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(state))
			admin.Get("/profiles", h.Admin.List)
			admin.Get("/profiles/{user_id}", h.Admin.Get)
			admin.Put("/profiles/{user_id}/role", h.Admin.SetRole)
		})
	})

	return r
}
