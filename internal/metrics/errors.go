package metrics

import (
	"strconv"

	"github.com/iocgate/iocgate/internal/observability"
)

// Error metrics, emitted by the envelope responder and the recovery
// middleware.
var (
	ErrorsTotal      = "gate_errors_total"
	PanicsTotal      = "gate_panics_total"
	ErrorsByEndpoint = "gate_errors_by_endpoint_total"
)

// RecordError counts an error response by envelope code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsTotal,
			1,
			map[string]string{
				"error_code":  errorCode,
				"http_status": strconv.Itoa(httpStatus),
			},
		)
	}
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PanicsTotal,
			1,
			nil,
		)
	}
}

// RecordErrorByEndpoint counts an error response by route and envelope code.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsByEndpoint,
			1,
			map[string]string{
				"endpoint":   endpoint,
				"error_code": errorCode,
			},
		)
	}
}
