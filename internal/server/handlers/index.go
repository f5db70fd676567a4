package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iocgate/iocgate/internal/core"
)

// IndexResponse is the GET / body: service metadata and the configured
// quota ceilings, so integrators can discover the limits without tripping
// over them.
type IndexResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Limits    IndexLimits       `json:"limits"`
	Endpoints map[string]string `json:"endpoints"`
}

// IndexLimits describes the configured quota ceilings.
type IndexLimits struct {
	PerClientDaily int    `json:"per_client_daily"`
	GlobalDaily    int    `json:"global_daily"`
	GlobalMonthly  int    `json:"global_monthly"`
	CacheTTL       string `json:"cache_ttl"`
}

// IndexHandler serves service metadata at the root path.
type IndexHandler struct {
	Limits   core.QuotaLimits
	CacheTTL string
}

func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := IndexResponse{
		Service: "iocgate",
		Version: AppVersion,
		Limits: IndexLimits{
			PerClientDaily: h.Limits.PerClientDaily,
			GlobalDaily:    h.Limits.GlobalDaily,
			GlobalMonthly:  h.Limits.GlobalMonthly,
			CacheTTL:       h.CacheTTL,
		},
		Endpoints: map[string]string{
			"analyze": "POST /api/analyze",
			"health":  "GET /api/health",
			"stats":   "GET /api/stats",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
