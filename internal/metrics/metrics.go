package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resource kinds used as the "kind" label of ResourceUpdatesTotal.
const (
	KindDNSRecord       = "dns_record"
	KindGatewayLocation = "gateway_location"
	KindSpectrumApp     = "spectrum_app"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dns_updater_runs_total",
			Help: "Total number of synchronisation runs by result",
		},
		[]string{"result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dns_updater_run_duration_seconds",
			Help:    "Duration of synchronisation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tunnel metrics
	DiscoveredIPs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dns_updater_discovered_ips",
			Help: "Number of IPv4 egress addresses discovered per tunnel",
		},
		[]string{"tunnel"},
	)

	TunnelsDownTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dns_updater_tunnels_down_total",
			Help: "Total number of runs in which a tunnel had no active connection",
		},
		[]string{"tunnel"},
	)

	// Resource metrics
	ResourceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dns_updater_resource_updates_total",
			Help: "Total number of resource updates by kind and result",
		},
		[]string{"kind", "result"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dns_updater_alerts_total",
			Help: "Total number of tunnel down alerts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(DiscoveredIPs)
	prometheus.MustRegister(TunnelsDownTotal)
	prometheus.MustRegister(ResourceUpdatesTotal)
	prometheus.MustRegister(AlertsTotal)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveUpdate counts one resource update attempt.
func ObserveUpdate(kind string, err error) {
	ResourceUpdatesTotal.WithLabelValues(kind, Result(err)).Inc()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (timer *Timer) Duration() time.Duration {
	return time.Since(timer.start)
}

// ObserveDuration records the elapsed time in seconds.
func (timer *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(timer.Duration().Seconds())
}
