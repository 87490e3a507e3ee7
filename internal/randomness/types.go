// Package randomness implements the statistical core of the randomness
// quality assessment: the NIST SP 800-22 frequency, runs, block frequency
// and approximate entropy tests, the NIST SP 800-90B repetition count and
// adaptive proportion health tests, Benjamini-Hochberg false discovery rate
// correction, and the decision logic that turns p-values and health results
// into verdicts. Everything here is pure computation over a Sequence.
package randomness

// Test identifiers. The order of StatisticalTests is the insertion order of
// every PValueVector produced by the Analyzer.
const (
	TestMonoBit           = "mono_bit"
	TestRuns              = "runs"
	TestBlockFrequency    = "block_frequency"
	TestApproxEntropy     = "approx_entropy"
	HealthRepetitionCount = "rct"
	HealthAdaptiveProp    = "apt"
)

// StatisticalTests lists the SP 800-22 tests in report order.
var StatisticalTests = []string{
	TestMonoBit,
	TestRuns,
	TestBlockFrequency,
	TestApproxEntropy,
}

// TestStatistic is the outcome of one hypothesis test. PValue is always in
// [0, 1] and never NaN. Statistic holds the test statistic (s_obs, V_n or
// chi-square) and Details carries test-specific diagnostics.
type TestStatistic struct {
	Name      string
	PValue    float64
	Statistic float64
	Details   map[string]float64
}

// RCTEvidence holds the diagnostics of a repetition count test.
type RCTEvidence struct {
	MaxRun          int
	Cutoff          int
	MinEntropy      float64 // assumed per-bit min-entropy H
	ExceedanceProb  float64 // 2^(-(MaxRun-1)*H), diagnostic only
	FalseAlarmBound float64 // min(1, n*2^(1-Cutoff)), diagnostic only
	BitsExamined    int
}

// WindowViolation identifies an APT window whose ones count fell outside the
// acceptance bounds.
type WindowViolation struct {
	Index int
	Ones  int
}

// APTEvidence holds the diagnostics of an adaptive proportion test.
type APTEvidence struct {
	Window       int
	Alpha        float64
	Lower        int // inclusive
	Upper        int // inclusive
	Windows      int // number of complete windows tested
	Violations   []WindowViolation
	BitsExamined int
}

// HealthResult is the outcome of an SP 800-90B health test. Skipped is set
// when the input is too short to run the test at all; a skipped test is
// reported with Passed=true because it is not evidence of failure.
type HealthResult struct {
	Name    string
	Passed  bool
	Skipped bool
	Reason  string

	RCT *RCTEvidence
	APT *APTEvidence
}

// PValue is one named entry of a PValueVector.
type PValue struct {
	Name  string
	Value float64
}

// PValueVector maps test names to raw p-values, preserving insertion order.
type PValueVector []PValue

// AdjustedPValueVector has the same names and order as the PValueVector it
// was derived from, with values replaced by FDR-adjusted q-values.
type AdjustedPValueVector []PValue

// Names returns the test names in order.
func (v PValueVector) Names() []string {
	return names(v)
}

// Get returns the value recorded for name.
func (v PValueVector) Get(name string) (float64, bool) {
	return lookup(v, name)
}

// Names returns the test names in order.
func (v AdjustedPValueVector) Names() []string {
	return names(v)
}

// Get returns the adjusted value recorded for name.
func (v AdjustedPValueVector) Get(name string) (float64, bool) {
	return lookup(v, name)
}

func names(v []PValue) []string {
	out := make([]string, len(v))
	for i, p := range v {
		out[i] = p.Name
	}
	return out
}

func lookup(v []PValue, name string) (float64, bool) {
	for _, p := range v {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}
