package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
)

const namespace = "invoice_ledger"

// Outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeInput      = "input"
	OutcomeAdapter    = "adapter"
	OutcomeValidation = "validation"
	OutcomeInvariant  = "invariant"
	OutcomeCanceled   = "canceled"
	OutcomeError      = "error"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	adapterCalls    *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec

	QueueDepth  prometheus.Gauge
	jobs        *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide instance registered on prometheus.DefaultRegisterer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors on reg. Tests pass prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		adapterCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_calls_total",
			Help:      "Calls to the text extractor, invoice parser and credibility scorer by outcome",
		}, []string{"op", "outcome"}),
		adapterDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_call_duration_seconds",
			Help:      "Adapter call latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_transitions_total",
			Help:      "Ledger entry status transitions",
		}, []string{"from", "to"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_queue_depth",
			Help:      "Documents waiting in the batch queue",
		}),
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_jobs_total",
			Help:      "Batch jobs finished by outcome",
		}, []string{"outcome"}),
		jobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_job_duration_seconds",
			Help:      "Time from dequeue to the end of a batch job",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

// AdapterCall records one extract, parse or score call.
func (m *Metrics) AdapterCall(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.adapterCalls.WithLabelValues(op, Outcome(err)).Inc()
	m.adapterDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Transition counts a status change. Same-status calls are ignored.
func (m *Metrics) Transition(from, to constants.LedgerStatus) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// JobDone records a finished batch job.
func (m *Metrics) JobDone(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(Outcome(err)).Inc()
	m.jobDuration.Observe(elapsed.Seconds())
}

// Outcome maps an error to its label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, common.ErrInput):
		return OutcomeInput
	case errors.Is(err, common.ErrAdapter):
		return OutcomeAdapter
	case errors.Is(err, common.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, common.ErrInvariant):
		return OutcomeInvariant
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
