package routes

import (
	"net/http"

	"github.com/BradenHooton/admingate/internal/auth"
	"github.com/BradenHooton/admingate/internal/handlers"
	"github.com/BradenHooton/admingate/internal/middleware"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Deps holds everything the routes need
type Deps struct {
	Gate           *handlers.GateHandler
	Nav            *handlers.NavHandler
	Health         *handlers.HealthHandler
	Tokens         *auth.TokenManager
	Sessions       auth.SessionChecker
	Metrics        http.Handler
	IPConfig       *pkghttp.IPConfig
	LoginRateLimit middleware.RateLimitConfig
	StateRateLimit middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Deps) {
	router.Get("/health", deps.Health.Health)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Login gate - no session required
	router.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimitByClientIP(deps.LoginRateLimit, deps.IPConfig)).Post("/login", deps.Gate.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByClientIP(deps.StateRateLimit, deps.IPConfig))
			r.Get("/state", deps.Gate.State)
			r.Post("/logout", deps.Gate.Logout)
		})

		// Long-lived; not rate limited beyond the connection itself
		r.Get("/events", deps.Gate.Events)
	})

	// Protected dashboard shell
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(deps.Tokens, deps.Sessions))
		r.Get("/dashboard/nav", deps.Nav.Nav)
	})
}
