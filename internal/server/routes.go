package server

import (
	"github.com/iocgate/iocgate/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	analyze := &handlers.AnalyzeHandler{Gate: s.deps.Gate}
	stats := &handlers.StatsHandler{Quota: s.deps.Quota}
	apiHealth := &handlers.APIHealthHandler{Analyzer: s.deps.Analyzer}
	index := &handlers.IndexHandler{Limits: s.deps.Limits, CacheTTL: s.deps.CacheTTL.String()}

	// Public API surface
	s.router.Post("/api/analyze", analyze.ServeHTTP)
	s.router.Get("/api/health", apiHealth.ServeHTTP)
	s.router.Get("/api/stats", stats.ServeHTTP)
	s.router.Get("/", index.ServeHTTP)

	// Standard probe endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)
}
