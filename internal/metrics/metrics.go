// Package metrics collects result-size telemetry for the query runner.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ResultSize records the weight of each successful query result into
// an exponential histogram and tracks the running maximum. One
// instance lives for the whole process; Observe is safe for
// unsynchronized concurrent use and never fails.
type ResultSize struct {
	histogram prometheus.Histogram
	maxGauge  prometheus.Gauge

	mu  sync.Mutex // serializes raises of max and the gauge together
	max atomic.Uint64
}

// NewResultSize registers the query_result_size histogram and the
// query_result_max gauge on reg and returns the recorder.
func NewResultSize(reg prometheus.Registerer) *ResultSize {
	// Exponential buckets between 1k and 4G result weight.
	bins := make([]float64, 0, 22)
	for n := 10; n < 32; n++ {
		bins = append(bins, float64(uint64(1)<<n))
	}
	m := &ResultSize{
		histogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "query_result_size",
			Help:    "the size of the result of successful GraphQL queries (in weight units)",
			Buckets: bins,
		}),
		maxGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "query_result_max",
			Help: "the maximum size of a query result (in weight units)",
		}),
	}
	reg.MustRegister(m.histogram, m.maxGauge)
	return m
}

// Observe records one successful result's weight. The running maximum
// only ever goes up.
func (m *ResultSize) Observe(weight uint64) {
	m.histogram.Observe(float64(weight))
	if weight <= m.max.Load() {
		return
	}
	m.mu.Lock()
	if weight > m.max.Load() {
		m.max.Store(weight)
		m.maxGauge.Set(float64(weight))
	}
	m.mu.Unlock()
}

// Max reports the largest weight observed so far.
func (m *ResultSize) Max() uint64 { return m.max.Load() }
