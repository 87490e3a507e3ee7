package randomness

import "math"

// FrequencyTest runs the NIST SP 800-22 monobit test (Section 2.1). Bits are
// mapped to -1/+1 and summed; the statistic is s_obs = |S|/sqrt(n) and the
// p-value is erfc(s_obs/sqrt(2)).
func FrequencyTest(seq Sequence) (TestStatistic, error) {
	n := seq.Len()
	if n == 0 {
		return TestStatistic{}, newError("FrequencyTest", ErrEmptySequence, "")
	}

	// S = ones - zeros, kept in int64 so huge inputs cannot overflow.
	sum := int64(2*seq.Ones()) - int64(n)
	sObs := math.Abs(float64(sum)) / math.Sqrt(float64(n))
	pValue := ClampProbability(Erfc(sObs / math.Sqrt2))

	return TestStatistic{
		Name:      TestMonoBit,
		PValue:    pValue,
		Statistic: sObs,
		Details: map[string]float64{
			"n":    float64(n),
			"ones": float64(seq.Ones()),
			"sum":  float64(sum),
		},
	}, nil
}
