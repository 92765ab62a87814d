// Package metrics constructs the metrics the application will track.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safeguard/fraudledger/foundation/blockchain/state"
)

const namespace = "ledger"

// Ledger represents the ledger values the metrics read on every scrape.
type Ledger interface {
	QueryNetworkStatus() state.NetworkStatus
}

// Metrics represents the set of metrics we gather. These fields are
// safe to be accessed concurrently thanks to prometheus.
type Metrics struct {
	registry *prometheus.Registry

	Requests *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Panics   prometheus.Counter
	Latency  *prometheus.HistogramVec
}

// New constructs the metrics with its own registry so tests can create as
// many as they need.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),

		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of requests handled.",
		}, []string{"method", "route"}),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Number of requests that returned an error.",
		}, []string{"method", "route"}),

		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Number of panics recovered.",
		}),

		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time taken to handle a request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests,
		m.Errors,
		m.Panics,
		m.Latency,
	)

	return &m
}

// RegisterLedger adds gauges that read the chain length, the pending pool
// and the chain integrity from the ledger when scraped.
func (m *Metrics) RegisterLedger(ldg Ledger) {
	m.registry.MustRegister(newLedgerCollector(ldg))
}

// Handler returns the handler that serves the metrics to a scraper.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================

// ledgerCollector reads the network status once per scrape since computing
// it verifies the whole chain.
type ledgerCollector struct {
	ledger            Ledger
	chainLength       *prometheus.Desc
	pending           *prometheus.Desc
	integrityVerified *prometheus.Desc
}

func newLedgerCollector(ldg Ledger) *ledgerCollector {
	return &ledgerCollector{
		ledger:            ldg,
		chainLength:       prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "chain_length"), "Number of blocks in the chain.", nil, nil),
		pending:           prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "pending_transactions"), "Number of transactions waiting to be sealed.", nil, nil),
		integrityVerified: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "integrity_verified"), "1 when the chain verifies, 0 when it does not.", nil, nil),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *ledgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.chainLength
	ch <- c.pending
	ch <- c.integrityVerified
}

// Collect implements the prometheus.Collector interface.
func (c *ledgerCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.ledger.QueryNetworkStatus()

	var verified float64
	if s.IntegrityVerified {
		verified = 1
	}

	ch <- prometheus.MustNewConstMetric(c.chainLength, prometheus.GaugeValue, float64(s.ChainLength))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.PendingTransactions))
	ch <- prometheus.MustNewConstMetric(c.integrityVerified, prometheus.GaugeValue, verified)
}
