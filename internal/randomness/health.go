package randomness

import (
	"fmt"
	"math"
)

const (
	// DefaultRCTCutoff is the repetition count cutoff for alpha = 2^-33 at a
	// min-entropy of one bit per bit.
	DefaultRCTCutoff = 34
	// DefaultAPTWindow is the adaptive proportion window size in bits.
	DefaultAPTWindow = 512
	// DefaultMinEntropy is the assumed per-bit min-entropy H.
	DefaultMinEntropy = 1.0
)

// RepetitionCountTest runs the NIST SP 800-90B repetition count test
// (Section 4.4.1) over a bit sequence. The test fails when any run of
// identical bits is strictly longer than cutoff. The exceedance probability
// 2^(-(maxRun-1)*H) and the false-alarm bound are reported as evidence only.
func RepetitionCountTest(seq Sequence, cutoff int, minEntropy float64) (HealthResult, error) {
	n := seq.Len()
	if n == 0 {
		return HealthResult{}, newError("RepetitionCountTest", ErrEmptySequence, "")
	}
	if cutoff < 1 {
		return HealthResult{}, newError("RepetitionCountTest", ErrInvalidParameter, fmt.Sprintf("cutoff must be >= 1, got %d", cutoff))
	}
	if !(minEntropy > 0 && minEntropy <= 1) {
		return HealthResult{}, newError("RepetitionCountTest", ErrInvalidParameter, fmt.Sprintf("min-entropy must be in (0, 1], got %g", minEntropy))
	}

	maxRun, run := 1, 1
	for i := 1; i < n; i++ {
		if seq.bits[i] == seq.bits[i-1] {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 1
		}
	}

	bound := float64(n) * math.Exp2(float64(1-cutoff))

	return HealthResult{
		Name:   HealthRepetitionCount,
		Passed: maxRun <= cutoff,
		RCT: &RCTEvidence{
			MaxRun:          maxRun,
			Cutoff:          cutoff,
			MinEntropy:      minEntropy,
			ExceedanceProb:  ClampProbability(math.Exp2(-float64(maxRun-1) * minEntropy)),
			FalseAlarmBound: ClampProbability(bound),
			BitsExamined:    n,
		},
	}, nil
}

// AdaptiveProportionTest runs the NIST SP 800-90B adaptive proportion test
// (Section 4.4.2) adapted to binary data. The sequence is split into
// non-overlapping windows of size window; the number of ones in each window
// must fall inside the exact two-sided Binomial(window, 0.5) bounds at level
// alpha. A partial final window is discarded. When no complete window
// exists the result is Skipped.
func AdaptiveProportionTest(seq Sequence, window int, alpha float64) (HealthResult, error) {
	n := seq.Len()
	if n == 0 {
		return HealthResult{}, newError("AdaptiveProportionTest", ErrEmptySequence, "")
	}
	if window < 1 {
		return HealthResult{}, newError("AdaptiveProportionTest", ErrInvalidParameter, fmt.Sprintf("window must be >= 1, got %d", window))
	}
	if !(alpha > 0 && alpha < 1) {
		return HealthResult{}, newError("AdaptiveProportionTest", ErrInvalidParameter, fmt.Sprintf("alpha must be in (0, 1), got %g", alpha))
	}

	lower, upper, err := BinomialBounds(window, 0.5, alpha)
	if err != nil {
		return HealthResult{}, err
	}

	evidence := &APTEvidence{
		Window:       window,
		Alpha:        alpha,
		Lower:        lower,
		Upper:        upper,
		Windows:      n / window,
		BitsExamined: n,
	}

	if evidence.Windows == 0 {
		return HealthResult{
			Name:    HealthAdaptiveProp,
			Passed:  true,
			Skipped: true,
			Reason:  fmt.Sprintf("insufficient bits: n=%d < window=%d", n, window),
			APT:     evidence,
		}, nil
	}

	for w := 0; w < evidence.Windows; w++ {
		ones := 0
		for _, bit := range seq.bits[w*window : (w+1)*window] {
			ones += int(bit)
		}
		if ones < lower || ones > upper {
			evidence.Violations = append(evidence.Violations, WindowViolation{Index: w, Ones: ones})
		}
	}

	return HealthResult{
		Name:   HealthAdaptiveProp,
		Passed: len(evidence.Violations) == 0,
		APT:    evidence,
	}, nil
}
