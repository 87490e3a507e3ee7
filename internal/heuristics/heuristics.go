// Package heuristics computes single-pass supporting metrics that are not
// hypothesis tests. They are reported next to the statistical results and
// raise warnings but never change the overall verdict.
package heuristics

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/AmmannChristian/randqa/internal/randomness"
)

// Thresholds below which a metric is flagged.
const (
	EntropyThreshold     = 0.98
	CompressionThreshold = 0.95
)

// Metrics holds the supporting metrics of one sequence.
type Metrics struct {
	ShannonEntropy   float64 // bits per bit
	CompressionRatio float64 // compressed size / packed size
	EntropyPass      bool
	CompressionPass  bool
}

// Compute evaluates every supporting metric over seq.
func Compute(seq randomness.Sequence) (Metrics, error) {
	ratio, err := CompressionRatio(seq)
	if err != nil {
		return Metrics{}, err
	}
	h := ShannonEntropy(seq)
	return Metrics{
		ShannonEntropy:   h,
		CompressionRatio: ratio,
		EntropyPass:      h >= EntropyThreshold,
		CompressionPass:  ratio >= CompressionThreshold,
	}, nil
}

// ShannonEntropy returns the empirical entropy of the bit distribution,
// -p0*log2(p0) - p1*log2(p1). An empty sequence has entropy 0.
func ShannonEntropy(seq randomness.Sequence) float64 {
	n := seq.Len()
	if n == 0 {
		return 0
	}
	ones := seq.Ones()
	if ones == 0 || ones == n {
		return 0
	}
	p1 := float64(ones) / float64(n)
	return stat.Entropy([]float64{1 - p1, p1}) / math.Ln2
}

// CompressionRatio packs seq LSB-first (zero-padding the final byte),
// compresses it with zlib at best compression and returns compressed size
// over packed size. Random data does not compress, so the ratio is close to
// or slightly above 1.
func CompressionRatio(seq randomness.Sequence) (float64, error) {
	if seq.Len() == 0 {
		return 0, nil
	}
	raw := seq.Pack(randomness.LSBFirst)

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return 0, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return 0, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("flush compressor: %w", err)
	}
	return float64(buf.Len()) / float64(len(raw)), nil
}
