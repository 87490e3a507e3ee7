package randomness

import (
	"fmt"
	"math"
)

// BlockFrequencyTest runs the NIST SP 800-22 frequency test within a block
// (Section 2.2). The sequence is cut into N = n/M non-overlapping blocks,
// remainder bits are discarded, and chi2 = 4M * sum((pi_i - 0.5)^2) is
// referred to a chi-square distribution with N degrees of freedom.
func BlockFrequencyTest(seq Sequence, blockSize int) (TestStatistic, error) {
	n := seq.Len()
	if n == 0 {
		return TestStatistic{}, newError("BlockFrequencyTest", ErrEmptySequence, "")
	}
	if blockSize < 1 || blockSize > n {
		return TestStatistic{}, newError("BlockFrequencyTest", ErrInvalidBlockSize, fmt.Sprintf("M=%d, n=%d", blockSize, n))
	}

	blocks := n / blockSize
	m := float64(blockSize)

	var sumSq, maxDev float64
	for b := 0; b < blocks; b++ {
		ones := 0
		for _, bit := range seq.bits[b*blockSize : (b+1)*blockSize] {
			ones += int(bit)
		}
		dev := float64(ones)/m - 0.5
		sumSq += dev * dev
		if math.Abs(dev) > maxDev {
			maxDev = math.Abs(dev)
		}
	}

	chiSq := 4 * m * sumSq
	pValue := ChiSquareUpperTail(chiSq, float64(blocks))

	return TestStatistic{
		Name:      TestBlockFrequency,
		PValue:    pValue,
		Statistic: chiSq,
		Details: map[string]float64{
			"blocks":              float64(blocks),
			"block_size":          m,
			"discarded_bits":      float64(n - blocks*blockSize),
			"max_block_deviation": maxDev,
		},
	}, nil
}
