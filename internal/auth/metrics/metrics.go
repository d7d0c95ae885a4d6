// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

const outcomeOK = "ok"

type Metrics struct {
	reg *prometheus.Registry

	mAuth      *prometheus.CounterVec
	mTokenOps  *prometheus.CounterVec
	mTokenDur  *prometheus.HistogramVec
	mReplays   prometheus.Counter
	mSweeps    prometheus.Counter
	mSweepRows prometheus.Counter
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		mAuth: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_auth_requests_total", Help: "Authenticated requests by scheme and outcome",
		}, []string{"scheme", "outcome"}),
		mTokenOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_token_operations_total", Help: "Login, refresh and logout calls by outcome",
		}, []string{"operation", "outcome"}),
		mTokenDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "gatehouse_token_operation_duration_seconds", Help: "Latency of token endpoint operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		mReplays: f.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_dpop_replays_total", Help: "DPoP proofs rejected as replays",
		}),
		mSweeps: f.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_cache_sweeps_total", Help: "Housekeeping sweeps run",
		}),
		mSweepRows: f.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_cache_swept_entries_total", Help: "Expired cache entries removed by housekeeping",
		}),
	}
}

// ObserveAuth implements httpx.AuthObserver.
func (m *Metrics) ObserveAuth(scheme string, kind jwtx.Kind) {
	if scheme == "" {
		scheme = "none"
	}
	outcome := outcomeOK
	if kind != "" {
		outcome = string(kind)
	}
	if kind == jwtx.KindReplayedProof {
		m.mReplays.Inc()
	}
	m.mAuth.WithLabelValues(scheme, outcome).Inc()
}

// ObserveTokenOp records one token endpoint call. outcome is "" on
// success.
func (m *Metrics) ObserveTokenOp(operation, outcome string, started time.Time) {
	if outcome == "" {
		outcome = outcomeOK
	}
	m.mTokenOps.WithLabelValues(operation, outcome).Inc()
	m.mTokenDur.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveSweep records a housekeeping pass.
func (m *Metrics) ObserveSweep(deleted int64) {
	m.mSweeps.Inc()
	m.mSweepRows.Add(float64(deleted))
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
