package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const outcomeSuccess = "success"

// Metrics holds settlement collectors
type Metrics struct {
	settlements   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	ledgerRetries prometheus.Counter
	unrecorded    prometheus.Gauge
	orphans       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aquanexus",
				Subsystem: "settlement",
				Name:      "requests_total",
				Help:      "Settlement attempts by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aquanexus",
				Subsystem: "settlement",
				Name:      "duration_seconds",
				Help:      "Settlement latency by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		ledgerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aquanexus",
			Subsystem: "settlement",
			Name:      "ledger_retries_total",
			Help:      "Ledger append attempts beyond the first.",
		}),
		unrecorded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aquanexus",
			Subsystem: "settlement",
			Name:      "unrecorded_pending",
			Help:      "Sold projects whose ledger record is queued for retry.",
		}),
		orphans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aquanexus",
			Subsystem: "settlement",
			Name:      "orphaned_sales",
			Help:      "Sold projects with no ledger record and nothing queued.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.settlements, m.duration, m.ledgerRetries, m.unrecorded, m.orphans)
	}
	return m
}

func (m *Metrics) observe(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ledgerRetry() {
	if m == nil {
		return
	}
	m.ledgerRetries.Inc()
}

func (m *Metrics) setBacklog(pending, orphans int) {
	if m == nil {
		return
	}
	m.unrecorded.Set(float64(pending))
	m.orphans.Set(float64(orphans))
}
