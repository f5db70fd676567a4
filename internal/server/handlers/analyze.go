package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iocgate/iocgate/internal/core"
	"github.com/iocgate/iocgate/internal/core/engine"
	apperrors "github.com/iocgate/iocgate/internal/errors"
	"github.com/iocgate/iocgate/internal/metrics"
	"github.com/iocgate/iocgate/internal/observability"
)

// AnalyzeRequest is the POST /api/analyze body.
type AnalyzeRequest struct {
	IOC string `json:"ioc"`
}

// RateLimitInfo is the quota block attached to successful responses.
type RateLimitInfo struct {
	Remaining   int      `json:"remaining"`
	Limit       int      `json:"limit"`
	ResetHours  *float64 `json:"reset_hours,omitempty"`
	CachedQuery bool     `json:"cached_query,omitempty"`
}

// AnalyzeResponse is the successful analysis response.
type AnalyzeResponse struct {
	Cached    bool            `json:"cached"`
	IOC       string          `json:"ioc"`
	Results   json.RawMessage `json:"results"`
	RateLimit RateLimitInfo   `json:"rate_limit"`
}

// QuotaDeniedResponse is the 429 body. Limit and reset hours are present
// only when they apply to the denied scope.
type QuotaDeniedResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Limit      *int     `json:"limit,omitempty"`
	Remaining  *int     `json:"remaining,omitempty"`
	ResetHours *float64 `json:"reset_hours,omitempty"`
}

// AnalyzeHandler serves POST /api/analyze through the admission gate.
type AnalyzeHandler struct {
	Gate *engine.Gate
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Gate == nil {
		respondWithError(w, r, apperrors.NewInternalError("Admission gate not initialized"))
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAdmission("rejected")
		respondWithError(w, r, apperrors.NewValidationError("Request body must be JSON with an \"ioc\" field"))
		return
	}

	clientKey := clientAddress(r)

	result, err := h.Gate.Admit(r.Context(), req.IOC, clientKey)
	if err != nil {
		h.respondAdmissionError(w, r, clientKey, err)
		return
	}

	// Analyzer call counts and latency are recorded at the gate's analyzer
	// boundary; this handler only labels the request outcome.
	outcome := "fresh"
	if result.Cached {
		outcome = "cached"
	}
	metrics.RecordAdmission(outcome)

	response := AnalyzeResponse{
		Cached:  result.Cached,
		IOC:     result.IOC,
		Results: result.Results,
		RateLimit: RateLimitInfo{
			Remaining:   result.Remaining,
			Limit:       result.Limit,
			CachedQuery: result.Cached,
		},
	}
	if hours := core.HoursUntilReset(time.Now()); hours > 0 {
		response.RateLimit.ResetHours = &hours
	}

	writeRateLimitHeaders(w, result.Limit, result.Remaining, result.ResetAt)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *AnalyzeHandler) respondAdmissionError(w http.ResponseWriter, r *http.Request, clientKey string, err error) {
	switch e := err.(type) {
	case *core.QuotaExceededError:
		h.respondQuotaDenied(w, r, clientKey, e)
	case *core.AnalyzerError:
		metrics.RecordAdmission("failed")
		if observability.ServerLogger != nil {
			observability.ServerLogger.Error("Analyzer invocation failed",
				zap.String("client", clientKey),
				zap.Error(e.Err))
		}
		respondWithError(w, r, apperrors.WrapAnalyzerError(r.Context(), e.Err, "Analysis backend failed"))
	case *core.StoreError:
		metrics.RecordAdmission("failed")
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), e.Err, "Storage failure while serving request"))
	default:
		if err == core.ErrEmptyIOC {
			metrics.RecordAdmission("rejected")
			respondWithError(w, r, apperrors.NewValidationError("IOC must not be empty"))
			return
		}
		metrics.RecordAdmission("failed")
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Unexpected admission failure"))
	}
}

// respondQuotaDenied writes the 429 body directly rather than through the
// envelope responder: denied clients need the machine-readable scope and
// reset figures in a stable shape.
func (h *AnalyzeHandler) respondQuotaDenied(w http.ResponseWriter, r *http.Request, clientKey string, e *core.QuotaExceededError) {
	metrics.RecordAdmission("denied")
	metrics.RecordQuotaDenial(string(e.Scope))

	// Denials are expected traffic, never a system fault.
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Quota exceeded",
			zap.String("client", clientKey),
			zap.String("scope", string(e.Scope)),
			zap.Int("limit", e.Limit))
	}

	response := QuotaDeniedResponse{
		Error:   "quota_exceeded",
		Message: e.Error(),
		Limit:   &e.Limit,
	}
	zero := 0
	response.Remaining = &zero
	if e.Scope.Daily() {
		response.ResetHours = &e.ResetHours
	}

	writeRateLimitHeaders(w, e.Limit, 0, core.NextDailyReset(time.Now()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(response)
}

func writeRateLimitHeaders(w http.ResponseWriter, limit, remaining int, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// clientAddress derives the quota key from the request. RealIP middleware
// has already folded forwarding headers into RemoteAddr.
func clientAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
