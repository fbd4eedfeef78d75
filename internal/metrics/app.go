package metrics

import (
	"time"

	"github.com/quizai/quizai/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Operations metrics
	OperationsTotal       = "app_operations_total"
	OperationsErrorsTotal = "app_operations_errors_total"

	// Grading metrics
	GradingBatchesTotal     = "grading_batches_total"
	GradingSubmissionsTotal = "grading_submissions_total"
	AIUsageTotal            = "ai_usage_total"

	// Security metrics
	LockoutsTotal   = "auth_lockouts_total"
	LockoutDuration = "auth_lockout_duration_ms"

	// Notification metrics
	NotificationsTotal = "notifications_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordOperation records an application operation with status
func RecordOperation(operation string, success bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			OperationsTotal,
			1,
			map[string]string{
				"operation": operation,
				"status":    statusLabel(success, "success", "failure"),
			},
		)
	}
}

// RecordOperationError records an application operation error
func RecordOperationError(operation string, errorType string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			OperationsErrorsTotal,
			1,
			map[string]string{
				"operation":  operation,
				"error_type": errorType,
			},
		)
	}
}

// RecordGradingBatch records one grading run and its per-submission results.
func RecordGradingBatch(outcome string, processed, skipped, failed int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		GradingBatchesTotal,
		1,
		map[string]string{"outcome": outcome},
	)
	for result, count := range map[string]int{"graded": processed, "skipped": skipped, "failed": failed} {
		labels := map[string]string{"result": result}
		for i := 0; i < count; i++ {
			_ = observability.TelemetrySystem.Counter(GradingSubmissionsTotal, 1, labels)
		}
	}
}

// RecordAIUsage records a charged grading model call.
func RecordAIUsage(trigger string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AIUsageTotal,
			1,
			map[string]string{"trigger": trigger},
		)
	}
}

// RecordLockout records a rate limiter lockout for an action.
func RecordLockout(action string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			LockoutsTotal,
			1,
			map[string]string{"action": action},
		)
		_ = observability.TelemetrySystem.Histogram(
			LockoutDuration,
			duration,
			map[string]string{"action": action},
		)
	}
}

// RecordNotification records an email delivery attempt.
func RecordNotification(kind string, success bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			NotificationsTotal,
			1,
			map[string]string{
				"kind":   kind,
				"status": statusLabel(success, "sent", "failed"),
			},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": statusLabel(healthy, "healthy", "unhealthy"),
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}

func statusLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
