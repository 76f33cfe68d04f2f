package auth

import "github.com/prometheus/client_golang/prometheus"

var (
	loginSuccess = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xiqsync_login_success_total",
			Help: "Successful logins against the provider",
		},
	)
	loginFailure = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xiqsync_login_failure_total",
			Help: "Failed logins against the provider",
		},
	)
	mirrorPersistOK = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xiqsync_credential_mirror_ok",
			Help: "Credential mirror health (1=ok, 0=error)",
		},
	)
)

// MetricsCollectors returns collectors for the auth module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		loginSuccess,
		loginFailure,
		mirrorPersistOK,
	}
}
