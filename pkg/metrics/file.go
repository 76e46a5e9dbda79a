package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	fileSubsystem = "file"

	opLabelKey   = "op"
	kindLabelKey = "kind"
)

type fileMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	size     *prometheus.HistogramVec
}

func newFileMetrics() fileMetrics {
	return fileMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: fileSubsystem,
			Name:      "operation_time",
			Help:      "Company file operation handling time",
		}, []string{opLabelKey}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: fileSubsystem,
			Name:      "failures_total",
			Help:      "Number of failed company file operations by failure kind",
		}, []string{opLabelKey, kindLabelKey}),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: fileSubsystem,
			Name:      "size_bytes",
			Help:      "Size of written and read company files",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 10),
		}, []string{opLabelKey}),
	}
}

func (m fileMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.duration, m.failures, m.size)
}

// AddOperationDuration records time spent by a file operation.
func (m fileMetrics) AddOperationDuration(op string, d time.Duration) {
	m.duration.With(prometheus.Labels{opLabelKey: op}).Observe(d.Seconds())
}

// IncFailures counts a failed file operation.
func (m fileMetrics) IncFailures(op string, kind string) {
	m.failures.With(prometheus.Labels{opLabelKey: op, kindLabelKey: kind}).Inc()
}

// ObserveFileSize records the size of a processed file.
func (m fileMetrics) ObserveFileSize(op string, size int64) {
	m.size.With(prometheus.Labels{opLabelKey: op}).Observe(float64(size))
}
