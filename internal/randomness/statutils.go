package randomness

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Erfc returns the complementary error function of x. The result carries
// full double precision and is clamped into [0, 2]; NaN input yields 0.
func Erfc(x float64) float64 {
	v := math.Erfc(x)
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 2:
		return 2
	}
	return v
}

// ChiSquareUpperTail returns P(X >= statistic) for a chi-square variable with
// df degrees of freedom, that is the regularized upper incomplete gamma
// function Q(df/2, statistic/2). It returns 1 when statistic <= 0 and the
// result is always clamped into [0, 1].
func ChiSquareUpperTail(statistic, df float64) float64 {
	if math.IsNaN(statistic) || math.IsNaN(df) || df <= 0 {
		return 0
	}
	if statistic <= 0 {
		return 1
	}
	if math.IsInf(statistic, 1) {
		return 0
	}

	dist := distuv.ChiSquared{K: df}
	return ClampProbability(dist.Survival(statistic))
}

// XLogX returns p*ln(p) with the convention 0*ln(0) = 0. ln is never
// evaluated at 0.
func XLogX(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return p * math.Log(p)
}

// ClampProbability maps v into [0, 1]; NaN becomes 0.
func ClampProbability(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// BinomialBounds returns inclusive two-sided acceptance bounds for a
// Binomial(n, p) count at significance alpha: lower is the smallest k with
// CDF(k) >= alpha/2 and upper is the smallest k with CDF(k) >= 1 - alpha/2.
func BinomialBounds(n int, p, alpha float64) (lower, upper int, err error) {
	if n < 1 {
		return 0, 0, newError("BinomialBounds", ErrInvalidParameter, fmt.Sprintf("n must be >= 1, got %d", n))
	}
	if !(p > 0 && p < 1) {
		return 0, 0, newError("BinomialBounds", ErrInvalidParameter, fmt.Sprintf("p must be in (0, 1), got %g", p))
	}
	if !(alpha > 0 && alpha < 1) {
		return 0, 0, newError("BinomialBounds", ErrInvalidParameter, fmt.Sprintf("alpha must be in (0, 1), got %g", alpha))
	}

	dist := distuv.Binomial{N: float64(n), P: p}
	quantile := func(q float64) int {
		// CDF is non-decreasing in k, so the first k reaching q is found by
		// binary search over [0, n].
		return sort.Search(n+1, func(k int) bool {
			return dist.CDF(float64(k)) >= q
		})
	}

	return quantile(alpha / 2), quantile(1 - alpha/2), nil
}

// RCTCutoff derives a repetition count cutoff 1 + ceil(-log2(alpha)/h) for a
// target false-alarm probability alpha and assumed per-bit min-entropy h.
func RCTCutoff(alpha, h float64) (int, error) {
	if !(alpha > 0 && alpha < 1) {
		return 0, newError("RCTCutoff", ErrInvalidParameter, fmt.Sprintf("alpha must be in (0, 1), got %g", alpha))
	}
	if !(h > 0 && h <= 1) {
		return 0, newError("RCTCutoff", ErrInvalidParameter, fmt.Sprintf("min-entropy must be in (0, 1], got %g", h))
	}
	return 1 + int(math.Ceil(-math.Log2(alpha)/h)), nil
}
