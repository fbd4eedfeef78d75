package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizai/quizai/internal/server/handlers"
	servermw "github.com/quizai/quizai/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Served here rather than in handlers so failures use HandleError.
	s.router.Method(http.MethodGet, "/metrics", newMetricsProxy())

	if s.api != nil {
		requireAuth := servermw.RequireAccount(HandleError)
		s.router.Route("/api", func(r chi.Router) {
			s.api.Mount(r, requireAuth)
		})
	}
}
