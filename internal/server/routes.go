package server

import (
	"github.com/chatrelay/chatrelay/internal/server/handlers"
)

// registerRoutes registers all ops HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// in the server package so it can reach HandleError
	s.router.Get("/metrics", MetricsHandler)
}
