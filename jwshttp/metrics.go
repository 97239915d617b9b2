package jwshttp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for signing and verification. A nil
// *Metrics records nothing.
type Metrics struct {
	verifyTotal   *prometheus.CounterVec
	signTotal     *prometheus.CounterVec
	spillsTotal   prometheus.Counter
	spilledBytes  prometheus.Counter
	bufferedBytes prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		verifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jws",
			Name:      "verify_total",
			Help:      "Request verifications by outcome and rejection kind.",
		}, []string{"outcome", "kind"}),
		signTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jws",
			Name:      "sign_total",
			Help:      "Response signatures by result.",
		}, []string{"result"}),
		spillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jws",
			Name:      "buffer_spills_total",
			Help:      "Bodies moved from memory to a temporary file.",
		}),
		spilledBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jws",
			Name:      "buffer_spilled_bytes_total",
			Help:      "Bytes held in memory at the moment of a spill, including the spilling write.",
		}),
		bufferedBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jws",
			Name:      "buffered_body_bytes",
			Help:      "Size of buffered message bodies.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
	}
}

// ObserveSpill implements buffering.SpillObserver.
func (m *Metrics) ObserveSpill(size int64) {
	if m == nil {
		return
	}

	m.spillsTotal.Inc()
	m.spilledBytes.Add(float64(size))
}

func (m *Metrics) observeVerify(outcome Outcome, kind Kind) {
	if m == nil {
		return
	}

	label := ""
	if kind != 0 {
		label = kind.String()
	}

	m.verifyTotal.WithLabelValues(outcome.String(), label).Inc()
}

func (m *Metrics) observeSign(ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}

	m.signTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeBuffered(size int64) {
	if m == nil {
		return
	}

	m.bufferedBytes.Observe(float64(size))
}
