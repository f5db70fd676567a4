package metrics

import (
	"time"

	"github.com/iocgate/iocgate/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	AdmissionsTotal       = "gate_admissions_total"
	QuotaDenialsTotal     = "gate_quota_denials_total"
	AnalyzerCallsTotal    = "gate_analyzer_calls_total"
	AnalyzerCallDuration  = "gate_analyzer_call_duration_ms"
	RetentionSweepsTotal  = "gate_retention_sweeps_total"
	RetentionRowsSwept    = "gate_retention_rows_swept"
	StoreWriteFailures    = "gate_store_write_failures_total"
	ServerStartTimeMetric = "gate_server_start_time_seconds"
)

// RecordAdmission records an analysis request outcome. Outcome is one of
// "cached", "fresh", "denied", "rejected", "failed".
func RecordAdmission(outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AdmissionsTotal,
			1,
			map[string]string{"outcome": outcome},
		)
	}
}

// RecordQuotaDenial records a denial labelled with the exceeded scope.
func RecordQuotaDenial(scope string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			QuotaDenialsTotal,
			1,
			map[string]string{"scope": scope},
		)
	}
}

// RecordAnalyzerCall records an external analyzer invocation.
func RecordAnalyzerCall(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AnalyzerCallsTotal,
			1,
			map[string]string{"status": status},
		)

		_ = observability.TelemetrySystem.Histogram(
			AnalyzerCallDuration,
			duration,
			map[string]string{"status": status},
		)
	}
}

// RecordStoreWriteFailure records a best-effort store write that failed
// after the analyzer had already answered.
func RecordStoreWriteFailure(op string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			StoreWriteFailures,
			1,
			map[string]string{"op": op},
		)
	}
}

// RecordSweep records a retention sweep and the rows it removed.
func RecordSweep(success bool, cacheRows, counterRows int64) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RetentionSweepsTotal,
			1,
			map[string]string{"status": status},
		)

		_ = observability.TelemetrySystem.Gauge(
			RetentionRowsSwept,
			float64(cacheRows),
			map[string]string{"kind": "cache"},
		)

		_ = observability.TelemetrySystem.Gauge(
			RetentionRowsSwept,
			float64(counterRows),
			map[string]string{"kind": "counters"},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTimeMetric,
			float64(timestamp),
			nil,
		)
	}
}
