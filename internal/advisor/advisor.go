// Package advisor turns an analysis report into short, actionable guidance.
package advisor

import (
	"fmt"
	"strings"

	"github.com/AmmannChristian/randqa/internal/heuristics"
	"github.com/AmmannChristian/randqa/internal/randomness"
)

// maxExampleWindows caps the APT window indices quoted in a message.
const maxExampleWindows = 3

var testHints = map[string]string{
	randomness.TestMonoBit:        "Mono_bit failed: overall 0/1 imbalance; apply rejection sampling or XOR with a balanced source.",
	randomness.TestRuns:           "Runs failed: oscillation pattern is abnormal; investigate LSB bias or linear structure; consider a cryptographic DRBG.",
	randomness.TestBlockFrequency: "Block Frequency failed: local bias detected; strengthen entropy pool mixing or hash the pool before output.",
	randomness.TestApproxEntropy:  "Approximate Entropy failed: repeating patterns present; consider larger state or non-linear mixing.",
}

// Advise returns guidance for report. metrics may be nil when supporting
// metrics were not computed. The result is never empty.
func Advise(report *randomness.Report, metrics *heuristics.Metrics) []string {
	var msgs []string

	msgs = append(msgs, rctAdvice(report.RCT)...)
	msgs = append(msgs, aptAdvice(report.APT)...)

	for _, d := range report.Decision.Tests {
		if d.Pass {
			continue
		}
		if hint, ok := testHints[d.Name]; ok {
			msgs = append(msgs, hint)
		}
	}

	if metrics != nil {
		if !metrics.CompressionPass {
			msgs = append(msgs, "Stream is compressible (structure present). Avoid using this stream for keys/nonces without conditioning.")
		}
		if !metrics.EntropyPass {
			msgs = append(msgs, fmt.Sprintf("Shannon entropy %.3f bits/bit is below %.2f; the source is biased.", metrics.ShannonEntropy, heuristics.EntropyThreshold))
		}
	}

	if len(msgs) == 0 {
		msgs = append(msgs, fmt.Sprintf("No red flags at alpha=%g. Proceed, but deploy periodic health testing and telemetry in production.", report.Decision.Alpha))
	}
	return msgs
}

func rctAdvice(h randomness.HealthResult) []string {
	if h.Passed || h.RCT == nil {
		return nil
	}
	return []string{fmt.Sprintf(
		"Repetition Count Test failed: max run=%d > cutoff %d. Consider de-biasing/conditioning (e.g., Von Neumann extractor) or replacing the source.",
		h.RCT.MaxRun, h.RCT.Cutoff,
	)}
}

func aptAdvice(h randomness.HealthResult) []string {
	ev := h.APT
	if ev == nil {
		return nil
	}

	if h.Skipped {
		return []string{fmt.Sprintf(
			"Adaptive Proportion Test not run (%s); collected n=%d, window=%d. Provide at least %d bits (prefer multiples of %d) or reduce the window size.",
			h.Reason, ev.BitsExamined, ev.Window, ev.Window, ev.Window,
		)}
	}
	if h.Passed {
		return nil
	}

	example := ""
	if k := len(ev.Violations); k > 0 {
		shown := ev.Violations
		if k > maxExampleWindows {
			shown = shown[:maxExampleWindows]
		}
		idx := make([]string, len(shown))
		for i, v := range shown {
			idx[i] = fmt.Sprint(v.Index)
		}
		label := "index"
		if len(idx) > 1 {
			label = "indexes"
		}
		example = fmt.Sprintf(" (e.g., window %s: %s)", label, strings.Join(idx, ", "))
	}

	return []string{fmt.Sprintf(
		"Adaptive Proportion Test failed: %d window(s) of size %d outside [%d,%d]%s. Review/condition the entropy source or reduce APT window to increase sensitivity with limited data.",
		len(ev.Violations), ev.Window, ev.Lower, ev.Upper, example,
	)}
}
