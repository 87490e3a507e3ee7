package randomness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	healthPass = HealthResult{Name: HealthRepetitionCount, Passed: true}
	aptPass    = HealthResult{Name: HealthAdaptiveProp, Passed: true}
)

func statVector(mono, runs, block, apen float64) PValueVector {
	return PValueVector{
		{Name: TestMonoBit, Value: mono},
		{Name: TestRuns, Value: runs},
		{Name: TestBlockFrequency, Value: block},
		{Name: TestApproxEntropy, Value: apen},
	}
}

func decide(t *testing.T, raw PValueVector, rct, apt HealthResult, fdr bool) DecisionReport {
	t.Helper()
	adj, err := BenjaminiHochberg(raw)
	require.NoError(t, err)
	report, err := Decide(raw, adj, rct, apt, DefaultAlpha, fdr)
	require.NoError(t, err)
	return report
}

func TestDecide_AllPass(t *testing.T) {
	report := decide(t, statVector(0.2, 0.3, 0.4, 0.012), healthPass, aptPass, true)

	assert.True(t, report.OverallPass)
	assert.True(t, report.OverallPassRaw)
	assert.True(t, report.RCTPass)
	assert.True(t, report.APTPass)
	assert.Equal(t, DefaultAlpha, report.Alpha)
	require.Len(t, report.Tests, 4)

	names := make([]string, len(report.Tests))
	for i, d := range report.Tests {
		names[i] = d.Name
		assert.True(t, d.Pass, d.Name)
	}
	assert.Equal(t, StatisticalTests, names)

	apen, ok := report.Test(TestApproxEntropy)
	require.True(t, ok)
	assert.InDelta(t, 0.048, apen.AdjustedP, 1e-12)
}

func TestDecide_FDRSeparatesRawAndAdjusted(t *testing.T) {
	// Monobit fails at alpha on its own, but its q-value 0.005*4/1 = 0.02
	// does not.
	raw := statVector(0.005, 0.5, 0.6, 0.7)

	withFDR := decide(t, raw, healthPass, aptPass, true)
	mono, ok := withFDR.Test(TestMonoBit)
	require.True(t, ok)
	assert.False(t, mono.RawPass)
	assert.True(t, mono.FDRPass)
	assert.False(t, mono.Pass)
	assert.InDelta(t, 0.02, mono.AdjustedP, 1e-12)
	assert.True(t, withFDR.OverallPass)
	assert.False(t, withFDR.OverallPassRaw)

	withoutFDR := decide(t, raw, healthPass, aptPass, false)
	assert.False(t, withoutFDR.OverallPass)
	assert.False(t, withoutFDR.OverallPassRaw)
	assert.False(t, withoutFDR.FDREnabled)
}

func TestDecide_FDRFailure(t *testing.T) {
	report := decide(t, statVector(0.5, 0, 0.6, 0), healthPass, aptPass, true)

	runs, _ := report.Test(TestRuns)
	assert.False(t, runs.RawPass)
	assert.False(t, runs.FDRPass)
	assert.False(t, runs.Pass)

	block, _ := report.Test(TestBlockFrequency)
	assert.True(t, block.Pass)

	assert.False(t, report.OverallPass)
	assert.False(t, report.OverallPassRaw)
}

func TestDecide_HealthGatesOverall(t *testing.T) {
	raw := statVector(0.5, 0.5, 0.5, 0.5)
	rctFail := HealthResult{Name: HealthRepetitionCount, Passed: false}
	aptFail := HealthResult{Name: HealthAdaptiveProp, Passed: false}

	report := decide(t, raw, rctFail, aptPass, true)
	assert.False(t, report.RCTPass)
	assert.False(t, report.OverallPass)
	assert.False(t, report.OverallPassRaw)
	for _, d := range report.Tests {
		assert.True(t, d.Pass, "per-test verdicts ignore health results")
	}

	report = decide(t, raw, healthPass, aptFail, false)
	assert.False(t, report.APTPass)
	assert.False(t, report.OverallPass)

	skipped := HealthResult{Name: HealthAdaptiveProp, Passed: true, Skipped: true}
	report = decide(t, raw, healthPass, skipped, true)
	assert.True(t, report.APTPass)
	assert.True(t, report.OverallPass)
}

func TestDecide_BoundaryIsStrict(t *testing.T) {
	report := decide(t, statVector(DefaultAlpha, 1, 1, 1), healthPass, aptPass, false)

	mono, _ := report.Test(TestMonoBit)
	assert.False(t, mono.RawPass, "p equal to alpha is a rejection")
}

func TestDecide_InvalidInput(t *testing.T) {
	raw := statVector(0.5, 0.5, 0.5, 0.5)
	adj, err := BenjaminiHochberg(raw)
	require.NoError(t, err)

	_, err = Decide(raw, adj[:3], healthPass, aptPass, DefaultAlpha, true)
	assert.ErrorIs(t, err, ErrMismatchedVectors)

	swapped := AdjustedPValueVector{adj[1], adj[0], adj[2], adj[3]}
	_, err = Decide(raw, swapped, healthPass, aptPass, DefaultAlpha, true)
	assert.ErrorIs(t, err, ErrMismatchedVectors)

	_, err = Decide(raw, adj, healthPass, aptPass, 0, true)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = Decide(PValueVector{}, AdjustedPValueVector{}, healthPass, aptPass, DefaultAlpha, true)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	for _, e := range []error{ErrMismatchedVectors, ErrInvalidParameter} {
		assert.True(t, IsInvalidInput(e))
	}
}
