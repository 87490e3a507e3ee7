package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequest(t *testing.T) {
	// Reset the counter
	RequestsTotal.Reset()

	RecordRequest("grpc")
	RecordRequest("grpc")
	RecordRequest("http")

	assert.Equal(t, 2.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("grpc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("http")))
}

func TestRecordDuration(t *testing.T) {
	DurationSeconds.Reset()

	RecordDuration("grpc", 0.5)
	RecordDuration("grpc", 1.5)
	RecordDuration("http", 2.0)

	assert.Equal(t, 2, testutil.CollectAndCount(DurationSeconds))
}

func TestRecordError(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("http", "invalid_input")
	RecordError("http", "invalid_input")
	RecordError("grpc", "internal")

	assert.Equal(t, 2.0, testutil.ToFloat64(ErrorsTotal.WithLabelValues("http", "invalid_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ErrorsTotal.WithLabelValues("grpc", "internal")))
}

func TestRecordSequenceBits(t *testing.T) {
	SequenceBits.Reset()

	RecordSequenceBits("http", 100_000)
	RecordSequenceBits("cli", 1_000)

	assert.Equal(t, 2, testutil.CollectAndCount(SequenceBits))
}

func TestRecordPValue(t *testing.T) {
	PValue.Reset()

	RecordPValue("runs", 0)
	RecordPValue("runs", 0.42)
	RecordPValue("mono_bit", 1)

	assert.Equal(t, 2, testutil.CollectAndCount(PValue))
}

func TestRecordVerdict(t *testing.T) {
	VerdictsTotal.Reset()

	RecordVerdict("runs", false)
	RecordVerdict("runs", false)
	RecordVerdict("runs", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(VerdictsTotal.WithLabelValues("runs", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(VerdictsTotal.WithLabelValues("runs", "pass")))
}

func TestRecordHealthFailure(t *testing.T) {
	HealthFailuresTotal.Reset()

	RecordHealthFailure("rct")

	assert.Equal(t, 1.0, testutil.ToFloat64(HealthFailuresTotal.WithLabelValues("rct")))
	assert.Equal(t, 0.0, testutil.ToFloat64(HealthFailuresTotal.WithLabelValues("apt")))
}
