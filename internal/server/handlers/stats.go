package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iocgate/iocgate/internal/core"
	"github.com/iocgate/iocgate/internal/core/quota"
	apperrors "github.com/iocgate/iocgate/internal/errors"
)

// PlatformStats is the global usage section of the stats response.
type PlatformStats struct {
	QueriesToday     int `json:"queries_today"`
	QueriesThisMonth int `json:"queries_this_month"`
}

// ClientStats is the per-client section of the stats response.
type ClientStats struct {
	IP             string `json:"ip"`
	QueriesToday   int    `json:"queries_today"`
	RemainingToday int    `json:"remaining_today"`
}

// StatsResponse is the GET /api/stats body.
type StatsResponse struct {
	PlatformStats PlatformStats `json:"platform_stats"`
	YourStats     ClientStats   `json:"your_stats"`
}

// StatsHandler serves GET /api/stats through the quota policy's usage
// reads; it never mutates quota state.
type StatsHandler struct {
	Quota *quota.Policy
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Quota == nil {
		respondWithError(w, r, apperrors.NewInternalError("Stats backend not initialized"))
		return
	}

	ctx := r.Context()
	clientKey := clientAddress(r)

	globalDaily, _, err := h.Quota.Usage(ctx, core.ScopeGlobalDaily, "")
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "Failed to read usage counters"))
		return
	}

	globalMonthly, _, err := h.Quota.Usage(ctx, core.ScopeGlobalMonthly, "")
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "Failed to read usage counters"))
		return
	}

	clientDaily, clientLimit, err := h.Quota.Usage(ctx, core.ScopePerClient, clientKey)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "Failed to read usage counters"))
		return
	}

	remaining := clientLimit - clientDaily
	if remaining < 0 {
		remaining = 0
	}

	response := StatsResponse{
		PlatformStats: PlatformStats{
			QueriesToday:     globalDaily,
			QueriesThisMonth: globalMonthly,
		},
		YourStats: ClientStats{
			IP:             clientKey,
			QueriesToday:   clientDaily,
			RemainingToday: remaining,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
