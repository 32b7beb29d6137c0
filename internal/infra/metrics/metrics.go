// Package metrics exposes allocator and store instrumentation.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is what the services record into.
type Collector interface {
	RecordAssignment(outcome string, pages int, cycleCompleted bool, duration time.Duration)
	RecordTxRetry(store string)
	SetKhatmProgress(slug string, percent int, completedCycles int)
	SetCorruptRecords(n int)
}

// Nop discards everything.
type Nop struct{}

var _ Collector = Nop{}

func (Nop) RecordAssignment(string, int, bool, time.Duration) {}
func (Nop) RecordTxRetry(string) {}
func (Nop) SetKhatmProgress(string, int, int) {}
func (Nop) SetCorruptRecords(int) {}

// Prometheus implements Collector with client_golang vectors registered on
// first use.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignments    *prometheus.CounterVec
	pagesAssigned  prometheus.Counter
	cyclesComplete prometheus.Counter
	assignLatency  prometheus.Histogram
	txRetries      *prometheus.CounterVec
	progress       *prometheus.GaugeVec
	completed      *prometheus.GaugeVec
	corrupt        prometheus.Gauge
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus uses prometheus.DefaultRegisterer when reg is nil and the
// "khatm" namespace when namespace is empty.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "khatm"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocator",
			Name:      "assignments_total",
			Help:      "Page assignment attempts by outcome.",
		}, []string{"outcome"})
		p.pagesAssigned = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocator",
			Name:      "pages_assigned_total",
			Help:      "Pages granted across all assignments.",
		})
		p.cyclesComplete = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocator",
			Name:      "cycles_completed_total",
			Help:      "Cycles completed by an assignment.",
		})
		p.assignLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "allocator",
			Name:      "assign_duration_seconds",
			Help:      "Latency of the assign transaction including retries.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		})
		p.txRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a transient conflict.",
		}, []string{"store"})
		p.progress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "audit",
			Name:      "progress_percent",
			Help:      "Assigned share of the current cycle as of the last audit.",
		}, []string{"slug"})
		p.completed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "audit",
			Name:      "completed_cycles",
			Help:      "Completed cycles as of the last audit.",
		}, []string{"slug"})
		p.corrupt = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "audit",
			Name:      "corrupt_records",
			Help:      "Records whose current page was out of range at the last audit.",
		})

		p.reg.MustRegister(
			p.assignments, p.pagesAssigned, p.cyclesComplete, p.assignLatency,
			p.txRetries, p.progress, p.completed, p.corrupt,
		)
	})
}

func (p *Prometheus) RecordAssignment(outcome string, pages int, cycleCompleted bool, duration time.Duration) {
	p.ensureRegistered()
	p.assignments.WithLabelValues(outcome).Inc()
	p.assignLatency.Observe(duration.Seconds())
	if pages > 0 {
		p.pagesAssigned.Add(float64(pages))
	}
	if cycleCompleted {
		p.cyclesComplete.Inc()
	}
}

func (p *Prometheus) RecordTxRetry(store string) {
	p.ensureRegistered()
	p.txRetries.WithLabelValues(store).Inc()
}

func (p *Prometheus) SetKhatmProgress(slug string, percent int, completedCycles int) {
	p.ensureRegistered()
	p.progress.WithLabelValues(slug).Set(float64(percent))
	p.completed.WithLabelValues(slug).Set(float64(completedCycles))
}

func (p *Prometheus) SetCorruptRecords(n int) {
	p.ensureRegistered()
	p.corrupt.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
