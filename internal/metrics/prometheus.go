package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts analysis requests per transport
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randqa_requests_total",
			Help: "Total number of randomness analysis requests",
		},
		[]string{"transport"}, // grpc or http
	)

	// DurationSeconds measures how long an analysis takes
	DurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "randqa_duration_seconds",
			Help:    "Duration of randomness analysis in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"transport"},
	)

	// ErrorsTotal counts failed requests
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randqa_errors_total",
			Help: "Total number of randomness analysis errors",
		},
		[]string{"transport", "error_type"},
	)

	// SequenceBits tracks the length of analysed sequences
	SequenceBits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "randqa_sequence_bits",
			Help:    "Length of analysed bit sequences",
			Buckets: prometheus.ExponentialBuckets(1000, 10, 6), // 1k to 100M bits
		},
		[]string{"transport"},
	)

	// PValue tracks the distribution of raw p-values per test. For a good
	// source each histogram should be flat.
	PValue = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "randqa_pvalue",
			Help:    "Raw p-values of the statistical tests",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"test"},
	)

	// VerdictsTotal counts per-test outcomes
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randqa_verdicts_total",
			Help: "Per-test verdicts",
		},
		[]string{"test", "outcome"}, // outcome is pass or fail
	)

	// HealthFailuresTotal counts failed health tests
	HealthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "randqa_health_failures_total",
			Help: "Number of failed SP 800-90B health tests",
		},
		[]string{"test"}, // rct or apt
	)
)

// RecordRequest increments the request counter for a transport
func RecordRequest(transport string) {
	RequestsTotal.WithLabelValues(transport).Inc()
}

// RecordDuration records the duration of an analysis
func RecordDuration(transport string, duration float64) {
	DurationSeconds.WithLabelValues(transport).Observe(duration)
}

// RecordError increments the error counter
func RecordError(transport, errorType string) {
	ErrorsTotal.WithLabelValues(transport, errorType).Inc()
}

// RecordSequenceBits records the number of analysed bits
func RecordSequenceBits(transport string, bits int) {
	SequenceBits.WithLabelValues(transport).Observe(float64(bits))
}

// RecordPValue records one raw p-value
func RecordPValue(test string, p float64) {
	PValue.WithLabelValues(test).Observe(p)
}

// RecordVerdict counts a pass or fail for test
func RecordVerdict(test string, pass bool) {
	outcome := "fail"
	if pass {
		outcome = "pass"
	}
	VerdictsTotal.WithLabelValues(test, outcome).Inc()
}

// RecordHealthFailure counts a failed health test
func RecordHealthFailure(test string) {
	HealthFailuresTotal.WithLabelValues(test).Inc()
}
