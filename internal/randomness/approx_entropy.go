package randomness

import (
	"fmt"
	"math"
)

// DefaultPatternLength is the approximate entropy block length m used when
// the caller does not choose one.
const DefaultPatternLength = 2

// MaxPatternLength bounds m+1 so the 2^(m+1) counter table stays small.
// ApproximateEntropyTest further requires 2^(m+1) <= 2n, keeping the table
// linear in the sequence length.
const MaxPatternLength = 20

// ApproximateEntropyTest runs the NIST SP 800-22 approximate entropy test
// (Section 2.12) with pattern length m. The sequence is treated as circular,
// overlapping windows of length m and m+1 are counted, and
// chi2 = 2n(ln 2 - ApEn) is referred to a chi-square distribution with 2^m
// degrees of freedom.
func ApproximateEntropyTest(seq Sequence, m int) (TestStatistic, error) {
	n := seq.Len()
	if n == 0 {
		return TestStatistic{}, newError("ApproximateEntropyTest", ErrEmptySequence, "")
	}
	if m < 0 || m+1 >= n {
		return TestStatistic{}, newError("ApproximateEntropyTest", ErrInvalidPatternLength, fmt.Sprintf("m=%d, n=%d", m, n))
	}
	if m+1 > MaxPatternLength {
		return TestStatistic{}, newError("ApproximateEntropyTest", ErrInvalidPatternLength, fmt.Sprintf("m+1=%d exceeds %d", m+1, MaxPatternLength))
	}
	if 1<<uint(m+1) > 2*n {
		return TestStatistic{}, newError("ApproximateEntropyTest", ErrInvalidPatternLength, fmt.Sprintf("2^(m+1)=%d patterns for n=%d bits", 1<<uint(m+1), n))
	}

	phiM := phi(seq, m)
	phiM1 := phi(seq, m+1)
	apEn := phiM - phiM1

	// ApEn cannot exceed ln 2 in exact arithmetic; rounding may push it over.
	chiSq := 2 * float64(n) * (math.Ln2 - apEn)
	if chiSq < 0 {
		chiSq = 0
	}

	df := math.Ldexp(1, m)
	pValue := ChiSquareUpperTail(chiSq, df)

	return TestStatistic{
		Name:      TestApproxEntropy,
		PValue:    pValue,
		Statistic: chiSq,
		Details: map[string]float64{
			"m":      float64(m),
			"phi_m":  phiM,
			"phi_m1": phiM1,
			"apen":   apEn,
			"df":     df,
		},
	}, nil
}

// phi computes sum(c/n * ln(c/n)) over the counts c of every cyclic L-bit
// window. Counts live in a slice indexed by the window's integer encoding.
func phi(seq Sequence, length int) float64 {
	if length == 0 {
		return 0
	}

	n := seq.Len()
	mask := (1 << uint(length)) - 1
	counts := make([]int, 1<<uint(length))

	key := 0
	for i := 0; i < length; i++ {
		key = (key << 1) | int(seq.bits[i%n])
	}
	for i := 0; i < n; i++ {
		counts[key]++
		key = ((key << 1) | int(seq.bits[(i+length)%n])) & mask
	}

	nf := float64(n)
	sum := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		sum += XLogX(float64(c) / nf)
	}
	return sum
}
