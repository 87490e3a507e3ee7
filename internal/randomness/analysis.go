package randomness

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	// DefaultBlockSize is the block frequency block length M.
	DefaultBlockSize = 128
	// RecommendedBits is the sample size below which p-values are considered
	// unstable and a warning is attached to the report.
	RecommendedBits = 100_000
	// minRecommendedBlocks is the block count below which block frequency
	// results are flagged.
	minRecommendedBlocks = 20
)

// Params bundles the parameters of one analysis run.
type Params struct {
	BlockSize     int     // block frequency M
	PatternLength int     // approximate entropy m
	RCTCutoff     int     // repetition count cutoff
	APTWindow     int     // adaptive proportion window W
	Alpha         float64 // significance level for every decision
	MinEntropy    float64 // assumed per-bit min-entropy H for RCT diagnostics
	FDREnabled    bool    // apply Benjamini-Hochberg correction to verdicts
}

// DefaultParams returns the recommended analysis parameters.
func DefaultParams() Params {
	return Params{
		BlockSize:     DefaultBlockSize,
		PatternLength: DefaultPatternLength,
		RCTCutoff:     DefaultRCTCutoff,
		APTWindow:     DefaultAPTWindow,
		Alpha:         DefaultAlpha,
		MinEntropy:    DefaultMinEntropy,
		FDREnabled:    true,
	}
}

// Validate checks parameters that do not depend on the sequence length.
func (p Params) Validate() error {
	switch {
	case p.BlockSize < 1:
		return newError("Params.Validate", ErrInvalidBlockSize, fmt.Sprintf("got %d", p.BlockSize))
	case p.PatternLength < 0 || p.PatternLength+1 > MaxPatternLength:
		return newError("Params.Validate", ErrInvalidPatternLength, fmt.Sprintf("got %d", p.PatternLength))
	case p.RCTCutoff < 1:
		return newError("Params.Validate", ErrInvalidParameter, fmt.Sprintf("rct cutoff must be >= 1, got %d", p.RCTCutoff))
	case p.APTWindow < 1:
		return newError("Params.Validate", ErrInvalidParameter, fmt.Sprintf("apt window must be >= 1, got %d", p.APTWindow))
	case !(p.Alpha > 0 && p.Alpha < 1):
		return newError("Params.Validate", ErrInvalidParameter, fmt.Sprintf("alpha must be in (0, 1), got %g", p.Alpha))
	case !(p.MinEntropy > 0 && p.MinEntropy <= 1):
		return newError("Params.Validate", ErrInvalidParameter, fmt.Sprintf("min-entropy must be in (0, 1], got %g", p.MinEntropy))
	}
	return nil
}

// Report is the complete outcome of one analysis: the four test statistics,
// both health results, the raw and adjusted p-value vectors and the final
// decision.
type Report struct {
	Bits       int
	Params     Params
	Statistics []TestStatistic
	RCT        HealthResult
	APT        HealthResult
	Raw        PValueVector
	Adjusted   AdjustedPValueVector
	Decision   DecisionReport
	Warnings   []string
}

// Statistic returns the test statistic recorded for name.
func (r *Report) Statistic(name string) (TestStatistic, bool) {
	for _, s := range r.Statistics {
		if s.Name == name {
			return s, true
		}
	}
	return TestStatistic{}, false
}

// Analyzer runs the full battery over a sequence. It holds no per-run state
// and may be shared between goroutines.
type Analyzer struct {
	logger zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for per-test debug output and sample size
// warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// NewAnalyzer creates an Analyzer. Without options it logs nothing.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the four statistical tests and both health tests on seq,
// applies FDR correction and returns the combined report.
func (a *Analyzer) Analyze(seq Sequence, p Params) (*Report, error) {
	if seq.Len() == 0 {
		return nil, newError("Analyze", ErrEmptySequence, "")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := seq.Len()
	warnings := Warnings(n, p)
	for _, w := range warnings {
		a.logger.Warn().Int("bits", n).Msg(w)
	}

	runners := []func() (TestStatistic, error){
		func() (TestStatistic, error) { return FrequencyTest(seq) },
		func() (TestStatistic, error) { return RunsTest(seq) },
		func() (TestStatistic, error) { return BlockFrequencyTest(seq, p.BlockSize) },
		func() (TestStatistic, error) { return ApproximateEntropyTest(seq, p.PatternLength) },
	}

	stats := make([]TestStatistic, 0, len(runners))
	raw := make(PValueVector, 0, len(runners))
	for _, run := range runners {
		st, err := run()
		if err != nil {
			return nil, err
		}
		a.logger.Debug().
			Str("test", st.Name).
			Float64("statistic", st.Statistic).
			Float64("p_value", st.PValue).
			Msg("statistical test completed")
		stats = append(stats, st)
		raw = append(raw, PValue{Name: st.Name, Value: st.PValue})
	}

	rct, err := RepetitionCountTest(seq, p.RCTCutoff, p.MinEntropy)
	if err != nil {
		return nil, err
	}
	apt, err := AdaptiveProportionTest(seq, p.APTWindow, p.Alpha)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().
		Bool("rct_pass", rct.Passed).
		Int("rct_max_run", rct.RCT.MaxRun).
		Bool("apt_pass", apt.Passed).
		Bool("apt_skipped", apt.Skipped).
		Int("apt_violations", len(apt.APT.Violations)).
		Msg("health tests completed")

	adjusted, err := BenjaminiHochberg(raw)
	if err != nil {
		return nil, err
	}

	decision, err := Decide(raw, adjusted, rct, apt, p.Alpha, p.FDREnabled)
	if err != nil {
		return nil, err
	}

	return &Report{
		Bits:       n,
		Params:     p,
		Statistics: stats,
		RCT:        rct,
		APT:        apt,
		Raw:        raw,
		Adjusted:   adjusted,
		Decision:   decision,
		Warnings:   warnings,
	}, nil
}

// Warnings returns human-readable notes about parameter choices that make
// the results less reliable for a sequence of n bits.
func Warnings(n int, p Params) []string {
	var notes []string
	if n < RecommendedBits {
		notes = append(notes, fmt.Sprintf("sample has %d bits; use at least %d for stable p-values", n, RecommendedBits))
	}
	if p.BlockSize > 0 {
		if blocks := n / p.BlockSize; blocks < minRecommendedBlocks {
			notes = append(notes, fmt.Sprintf("block frequency has only %d blocks; aim for at least %d", blocks, minRecommendedBlocks))
		}
	}
	if p.APTWindow > 0 && n < p.APTWindow {
		notes = append(notes, fmt.Sprintf("adaptive proportion test needs at least %d bits; it will be skipped", p.APTWindow))
	}
	return notes
}
