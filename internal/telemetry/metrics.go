package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipview",
			Name:      "cycles_total",
			Help:      "Total number of sync cycles per channel.",
		},
		[]string{"channel", "result"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gossipview",
			Name:      "cycle_duration_seconds",
			Help:      "Latency of sync cycles, fetch included.",
			// 1ms .. ~4s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"channel"},
	)

	InFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gossipview",
			Name:      "in_flight_cycles",
			Help:      "Current number of in-flight sync cycles.",
		},
		[]string{"channel"},
	)

	CollectionSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gossipview",
			Name:      "collection_size",
			Help:      "Number of distinct entities held per channel.",
		},
		[]string{"channel"},
	)

	DeltaItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipview",
			Name:      "delta_items_total",
			Help:      "Entities newly merged per channel.",
		},
		[]string{"channel"},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipview",
			Name:      "actions_total",
			Help:      "User actions submitted, by outcome.",
		},
		[]string{"action", "result"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipview",
			Name:      "requests_total",
			Help:      "HTTP requests sent to the node.",
		},
		[]string{"op", "status"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gossipview",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "gossipview",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		CyclesTotal, CycleDuration, InFlight, CollectionSize, DeltaItems,
		ActionsTotal, RequestsTotal, buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ---- Cycle instrumentation ----

// Instrument runs one sync cycle for channel and records its outcome.
func Instrument(channel string, cycle func() error) error {
	start := time.Now()

	InFlight.WithLabelValues(channel).Inc()
	defer InFlight.WithLabelValues(channel).Dec()

	err := cycle()

	CyclesTotal.WithLabelValues(channel, Result(err)).Inc()
	CycleDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	return err
}

// ObserveMerge records the outcome of a merge into a channel's collection.
func ObserveMerge(channel string, delta, size int) {
	if delta > 0 {
		DeltaItems.WithLabelValues(channel).Add(float64(delta))
	}
	CollectionSize.WithLabelValues(channel).Set(float64(size))
}

// ---- Client-side HTTP instrumentation ----

type roundTripper struct {
	next http.RoundTripper
	op   func(*http.Request) string
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	op := rt.op(req)
	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		RequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	class := strconv.Itoa(resp.StatusCode/100) + "xx"
	RequestsTotal.WithLabelValues(op, class).Inc()
	return resp, nil
}

// InstrumentTransport wraps next so every request is counted under the
// label returned by op. A nil next means http.DefaultTransport.
// Example:
//
//	client := &http.Client{Transport: telemetry.InstrumentTransport(nil, opFromPath)}
func InstrumentTransport(next http.RoundTripper, op func(*http.Request) string) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripper{next: next, op: op}
}
