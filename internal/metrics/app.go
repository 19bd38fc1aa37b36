package metrics

import (
	"github.com/chatrelay/chatrelay/internal/observability"
)

// Relay metrics following Prometheus conventions
var (
	MessagesTotal       = "relay_messages_total"
	ProviderErrorsTotal = "relay_provider_errors_total"
	RateLimitedTotal    = "relay_rate_limited_total"
	DeliveryTotal       = "relay_delivery_total"
	PollTotal           = "relay_poll_total"
	TrackedUsers        = "relay_tracked_users"
)

// RecordMessage records a processed inbound message with its terminal outcome.
func RecordMessage(outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			MessagesTotal,
			1,
			map[string]string{"outcome": outcome},
		)
	}
}

// RecordProviderError records a classified completion-provider failure.
func RecordProviderError(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ProviderErrorsTotal,
			1,
			map[string]string{"kind": kind},
		)
	}
}

// RecordRateLimited records a rejected admission check.
func RecordRateLimited() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RateLimitedTotal, 1, nil)
	}
}

// RecordDelivery records an outbound send attempt.
func RecordDelivery(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			DeliveryTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// RecordPoll records a long-poll cycle against the chat transport.
func RecordPoll(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PollTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// SetTrackedUsers sets the number of users with live rate-limit windows.
func SetTrackedUsers(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(TrackedUsers, float64(count), nil)
	}
}
