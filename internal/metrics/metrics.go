// Package metrics collects wallet and indexer metrics in a Prometheus
// registry owned by the process.
package metrics

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cswallet"

// Metrics holds the collectors. The zero value is not usable; use New.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestFailures *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	discoveryRounds *prometheus.CounterVec
	discoveryUsed   *prometheus.CounterVec
	broadcasts      *prometheus.CounterVec
	commits         *prometheus.CounterVec
	balance         prometheus.Gauge
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_requests_total",
			Help:      "HTTP requests sent to the indexer and platform APIs.",
		}, []string{"endpoint"}),
		requestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_request_failures_total",
			Help:      "HTTP requests that returned an error after retries.",
		}, []string{"endpoint"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indexer_request_seconds",
			Help:      "Latency of HTTP requests including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		discoveryRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_rounds_total",
			Help:      "Address discovery batches queried.",
		}, []string{"address_type", "branch"}),
		discoveryUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_used_addresses_total",
			Help:      "Used addresses found by discovery.",
		}, []string{"address_type", "branch"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Transactions submitted to the indexer.",
		}, []string{"result"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Broadcast transactions applied to wallet state.",
		}, []string{"kind"}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_sats",
			Help:      "Current wallet balance in smallest units.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.requestFailures, m.requestLatency,
		m.discoveryRounds, m.discoveryUsed,
		m.broadcasts, m.commits, m.balance,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest implements chain.RequestObserver.
func (m *Metrics) ObserveRequest(endpoint string, elapsed time.Duration, err error) {
	m.requests.WithLabelValues(endpoint).Inc()
	m.requestLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if err != nil {
		m.requestFailures.WithLabelValues(endpoint).Inc()
	}
}

// ObserveDiscoveryRound implements discovery.RoundObserver.
func (m *Metrics) ObserveDiscoveryRound(addressType, branch string, _, used int) {
	m.discoveryRounds.WithLabelValues(addressType, branch).Inc()
	m.discoveryUsed.WithLabelValues(addressType, branch).Add(float64(used))
}

// RecordBroadcast counts a broadcast attempt.
func (m *Metrics) RecordBroadcast(err error) {
	result := "accepted"
	if err != nil {
		result = "failed"
	}
	m.broadcasts.WithLabelValues(result).Inc()
}

// RecordCommit counts a committed transaction of the given kind
// (send, import or replacement).
func (m *Metrics) RecordCommit(kind string) {
	m.commits.WithLabelValues(kind).Inc()
}

// SetBalance updates the balance gauge.
func (m *Metrics) SetBalance(sats uint64) {
	m.balance.Set(float64(sats))
}

// Dump writes every gathered metric family to w, one per line.
func (m *Metrics) Dump(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	bw := bufio.NewWriter(w)
	for _, f := range families {
		if _, err := bw.WriteString(f.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
