package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xiqsync_runs_total",
			Help: "Sync runs by result",
		},
		[]string{"result"},
	)
	lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xiqsync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync",
		},
	)
	runDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xiqsync_last_run_duration_seconds",
			Help: "Duration of the last sync run",
		},
	)
	accessPointsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xiqsync_access_points",
			Help: "Access points fetched in the last successful run",
		},
	)
	ssidDevicesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xiqsync_ssid_devices",
			Help: "Devices with SSID information in the last successful run",
		},
	)
)

// MetricsCollectors returns collectors for the sync pipeline.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		runsTotal,
		lastSuccess,
		runDuration,
		accessPointsGauge,
		ssidDevicesGauge,
	}
}

func recordRun(r Result) {
	runDuration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
	if r.Err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return
	}
	runsTotal.WithLabelValues("success").Inc()
	lastSuccess.Set(float64(r.FinishedAt.Unix()))
	accessPointsGauge.Set(float64(r.AccessPoints))
	ssidDevicesGauge.Set(float64(r.SSIDDevices))
}
