package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	remainingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xiqsync_rate_limit_remaining",
			Help: "Remaining requests reported by the provider RateLimit-Remaining header",
		},
		[]string{"provider"},
	)
	retryAfterGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xiqsync_rate_limit_retry_after_seconds",
			Help: "Last Retry-After wait applied after a 429",
		},
		[]string{"provider"},
	)
	lastStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xiqsync_rate_limit_last_status_code",
			Help: "Last HTTP status code observed by the retry transport",
		},
		[]string{"provider"},
	)
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xiqsync_rate_limit_retries_total",
			Help: "Requests resent after a 429 response",
		},
		[]string{"provider"},
	)
	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xiqsync_rate_limit_exhausted_total",
			Help: "Requests that failed after exhausting 429 retries",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors exposes shared rate-limit collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		remainingGauge,
		retryAfterGauge,
		lastStatusGauge,
		retriesTotal,
		rateLimitedTotal,
	}
}
