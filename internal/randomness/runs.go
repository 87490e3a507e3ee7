package randomness

import "math"

// RunsTest runs the NIST SP 800-22 runs test (Section 2.3). The test is only
// meaningful when the ones proportion pi satisfies |pi - 0.5| < 2/sqrt(n);
// when it does not, or when pi is 0 or 1, the p-value is 0 and
// Details["precondition_met"] is 0.
func RunsTest(seq Sequence) (TestStatistic, error) {
	n := seq.Len()
	if n == 0 {
		return TestStatistic{}, newError("RunsTest", ErrEmptySequence, "")
	}

	nf := float64(n)
	pi := float64(seq.Ones()) / nf
	tau := 2 / math.Sqrt(nf)

	runs := 1
	for i := 1; i < n; i++ {
		if seq.bits[i] != seq.bits[i-1] {
			runs++
		}
	}

	details := map[string]float64{
		"n":                nf,
		"pi":               pi,
		"tau":              tau,
		"runs":             float64(runs),
		"precondition_met": 0,
	}
	result := TestStatistic{
		Name:      TestRuns,
		PValue:    0,
		Statistic: float64(runs),
		Details:   details,
	}

	if pi == 0 || pi == 1 || math.Abs(pi-0.5) >= tau {
		return result, nil
	}
	details["precondition_met"] = 1

	expected := 2 * nf * pi * (1 - pi)
	details["expected_runs"] = expected

	denom := 2 * math.Sqrt(2*nf) * pi * (1 - pi)
	if denom == 0 {
		return result, nil
	}

	result.PValue = ClampProbability(Erfc(math.Abs(float64(runs)-expected) / denom))
	return result, nil
}
