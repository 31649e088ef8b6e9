// Package jobs provides metrics for data loader runs.
//
// The loader is a batch process, so its metrics are written once per run in
// the Prometheus text format for a node exporter textfile collector instead
// of being served.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/legvotes/internal/legdata"
)

// Metrics names as constants for consistency.
const (
	MetricLoaderStepsTotal        = "legvotes_loader_steps_total"
	MetricLoaderStepDuration      = "legvotes_loader_step_duration_seconds"
	MetricLoaderStepErrorsTotal   = "legvotes_loader_step_errors_total"
	MetricLoaderRecords           = "legvotes_loader_records"
	MetricLoaderLastSuccessSecond = "legvotes_loader_last_success_timestamp_seconds"
)

// Status constants for step completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Error types recorded on step failures.
const (
	ErrorTypeTimeout  = "timeout"
	ErrorTypeCanceled = "canceled"
	ErrorTypeSource   = "source"
	ErrorTypeData     = "data"
	ErrorTypeInternal = "internal"
)

// Record kinds counted after parsing.
const (
	RecordLegislators = "legislators"
	RecordBills       = "bills"
	RecordVotes       = "votes"
)

// Metrics contains Prometheus metrics for loader steps.
// All operations are thread-safe.
type Metrics struct {
	stepsTotal    *prometheus.CounterVec
	stepsDuration *prometheus.HistogramVec
	stepErrors    *prometheus.CounterVec
	records       *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLoaderStepsTotal,
				Help: "Total number of loader step executions by step and status",
			},
			[]string{"step", "status"},
		),
		stepsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricLoaderStepDuration,
				Help:    "Histogram of loader step duration in seconds by step",
				Buckets: []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0, 600.0},
			},
			[]string{"step"},
		),
		stepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLoaderStepErrorsTotal,
				Help: "Total number of loader step errors by step and error type",
			},
			[]string{"step", "error_type"},
		),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricLoaderRecords,
				Help: "Number of records parsed in the last run by kind",
			},
			[]string{"kind"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricLoaderLastSuccessSecond,
				Help: "Unix time of the last run that completed every step",
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveStep records the outcome of one step. A nil err counts as success.
func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	m.stepsDuration.WithLabelValues(step).Observe(d.Seconds())
	if err == nil {
		m.stepsTotal.WithLabelValues(step, StatusSuccess).Inc()
		return
	}
	m.stepsTotal.WithLabelValues(step, StatusFailure).Inc()
	m.stepErrors.WithLabelValues(step, ErrorType(err)).Inc()
}

// SetRecords records how many records of kind the run parsed.
func (m *Metrics) SetRecords(kind string, n int) {
	m.records.WithLabelValues(kind).Set(float64(n))
}

// MarkSuccess records t as the completion time of a successful run.
func (m *Metrics) MarkSuccess(t time.Time) {
	m.lastSuccess.Set(float64(t.Unix()))
}

// ErrorType classifies a step error for the error_type label.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, legdata.ErrBadStatus), errors.Is(err, legdata.ErrMissingMember):
		return ErrorTypeSource
	case errors.Is(err, legdata.ErrShortRow),
		errors.Is(err, legdata.ErrNullField),
		errors.Is(err, legdata.ErrBadNumber),
		errors.Is(err, legdata.ErrUnknownHouse),
		errors.Is(err, legdata.ErrUnknownVersion),
		errors.Is(err, legdata.ErrUnknownAuthor),
		errors.Is(err, legdata.ErrUnknownMotion):
		return ErrorTypeData
	default:
		return ErrorTypeInternal
	}
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.stepsTotal,
		m.stepsDuration,
		m.stepErrors,
		m.records,
		m.lastSuccess,
	}
}
