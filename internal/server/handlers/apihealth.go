package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iocgate/iocgate/internal/core/engine"
)

// APIHealthResponse is the GET /api/health body.
type APIHealthResponse struct {
	Status            string `json:"status"`
	AnalyzerAvailable bool   `json:"analyzer_available"`
}

// APIHealthHandler serves the public API health endpoint. It reports the
// service as up plus whether the analysis backend is configured; the
// Kubernetes-style probes under /health carry the deeper checks.
type APIHealthHandler struct {
	Analyzer engine.Analyzer
}

func (h *APIHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := APIHealthResponse{
		Status:            "healthy",
		AnalyzerAvailable: h != nil && h.Analyzer != nil && h.Analyzer.Available(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
