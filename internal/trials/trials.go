// Package trials repeats an analysis over many seeds of a generator and
// summarises the distribution of each test's p-values.
package trials

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/AmmannChristian/randqa/internal/randomness"
	"github.com/AmmannChristian/randqa/internal/source"
)

// uniformityBins is the number of equal-width p-value bins used for the
// uniformity check.
const uniformityBins = 10

// Factory returns a fresh bit stream for seed.
type Factory func(seed uint64) (io.Reader, error)

// SourceFactory adapts a named generator to a Factory.
func SourceFactory(name string) Factory {
	return func(seed uint64) (io.Reader, error) {
		src, err := source.New(name, seed)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// TestSummary describes the p-values one test produced across all trials.
type TestSummary struct {
	Name           string  `json:"name"`
	Mean           float64 `json:"mean"`
	Median         float64 `json:"median"`
	StdDev         float64 `json:"stddev"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	PassProportion float64 `json:"pass_proportion"`
	// ProportionLower is the smallest pass proportion consistent with a
	// random source: (1-alpha) - 3*sqrt(alpha(1-alpha)/trials).
	ProportionLower float64 `json:"proportion_lower"`
	// Uniformity is the chi-square p-value of the p-values' histogram over
	// ten equal bins.
	Uniformity float64 `json:"uniformity_p"`
}

// Summary is the outcome of Run.
type Summary struct {
	Trials          int           `json:"trials"`
	Bits            int           `json:"bits"`
	Alpha           float64       `json:"alpha"`
	Tests           []TestSummary `json:"tests"`
	RCTFailures     int           `json:"rct_failures"`
	APTFailures     int           `json:"apt_failures"`
	OverallPasses   int           `json:"overall_passes"`
	OverallPassRate float64       `json:"overall_pass_rate"`
}

// Test returns the summary for name.
func (s *Summary) Test(name string) (TestSummary, bool) {
	for _, t := range s.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return TestSummary{}, false
}

// Runner executes trials sequentially.
type Runner struct {
	analyzer *randomness.Analyzer
	logger   zerolog.Logger
}

// NewRunner creates a Runner that logs per-trial progress to logger.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{
		analyzer: randomness.NewAnalyzer(randomness.WithLogger(logger)),
		logger:   logger,
	}
}

// Run analyses nBits from factory for every seed and summarises the results.
// It stops early with ctx.Err() when ctx is cancelled between trials.
func (r *Runner) Run(ctx context.Context, factory Factory, seeds []uint64, nBits int, p randomness.Params) (*Summary, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seeds: %w", randomness.ErrInvalidParameter)
	}

	pvals := make(map[string][]float64, len(randomness.StatisticalTests))
	summary := &Summary{Trials: len(seeds), Bits: nBits, Alpha: p.Alpha}

	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream, err := factory(seed)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}
		seq, err := source.Bits(stream, nBits)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}
		report, err := r.analyzer.Analyze(seq, p)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}

		for _, pv := range report.Raw {
			pvals[pv.Name] = append(pvals[pv.Name], pv.Value)
		}
		if !report.RCT.Passed {
			summary.RCTFailures++
		}
		if !report.APT.Passed {
			summary.APTFailures++
		}
		if report.Decision.OverallPass {
			summary.OverallPasses++
		}

		r.logger.Debug().
			Int("trial", i).
			Uint64("seed", seed).
			Bool("overall_pass", report.Decision.OverallPass).
			Msg("trial completed")
	}

	for _, name := range randomness.StatisticalTests {
		ts, err := summarise(name, pvals[name], p.Alpha)
		if err != nil {
			return nil, err
		}
		summary.Tests = append(summary.Tests, ts)
	}
	summary.OverallPassRate = float64(summary.OverallPasses) / float64(summary.Trials)

	r.logger.Info().
		Int("trials", summary.Trials).
		Int("bits", nBits).
		Float64("overall_pass_rate", summary.OverallPassRate).
		Msg("trials completed")

	return summary, nil
}

func summarise(name string, data []float64, alpha float64) (TestSummary, error) {
	mean, err := stats.Mean(data)
	if err != nil {
		return TestSummary{}, fmt.Errorf("%s mean: %w", name, err)
	}
	median, err := stats.Median(data)
	if err != nil {
		return TestSummary{}, fmt.Errorf("%s median: %w", name, err)
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return TestSummary{}, fmt.Errorf("%s stddev: %w", name, err)
	}
	lo, err := stats.Min(data)
	if err != nil {
		return TestSummary{}, fmt.Errorf("%s min: %w", name, err)
	}
	hi, err := stats.Max(data)
	if err != nil {
		return TestSummary{}, fmt.Errorf("%s max: %w", name, err)
	}

	passed := 0
	for _, v := range data {
		if v > alpha {
			passed++
		}
	}
	k := float64(len(data))

	return TestSummary{
		Name:            name,
		Mean:            mean,
		Median:          median,
		StdDev:          stdDev,
		Min:             lo,
		Max:             hi,
		PassProportion:  float64(passed) / k,
		ProportionLower: (1 - alpha) - 3*math.Sqrt(alpha*(1-alpha)/k),
		Uniformity:      Uniformity(data),
	}, nil
}

// Uniformity bins p-values into ten equal intervals of [0, 1] and returns
// the chi-square upper tail with nine degrees of freedom of the histogram
// against a flat expectation. A value of 1 falls into the last bin.
func Uniformity(pvalues []float64) float64 {
	if len(pvalues) == 0 {
		return 0
	}
	var counts [uniformityBins]int
	for _, v := range pvalues {
		b := int(v * uniformityBins)
		if b >= uniformityBins {
			b = uniformityBins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
	}

	expected := float64(len(pvalues)) / uniformityBins
	chiSq := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chiSq += d * d / expected
	}
	return randomness.ChiSquareUpperTail(chiSq, uniformityBins-1)
}

// Seeds returns count consecutive seeds starting at first.
func Seeds(first uint64, count int) []uint64 {
	out := make([]uint64, count)
	for i := range out {
		out[i] = first + uint64(i)
	}
	return out
}
