package report

import (
	"fmt"
	"strings"
)

func verdict(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func warnVerdict(pass *bool) string {
	switch {
	case pass == nil:
		return "N/A"
	case *pass:
		return "PASS"
	default:
		return "WARN"
	}
}

// Markdown renders doc as a human-readable report.
func Markdown(doc Document) string {
	r := doc.Results
	d := r.Decisions

	var b strings.Builder
	b.WriteString("# randqa Report\n\n")
	fmt.Fprintf(&b, "- **Source:** %s\n", doc.Source)
	if doc.Seed != nil {
		fmt.Fprintf(&b, "- **Seed:** %d\n", *doc.Seed)
	}
	fmt.Fprintf(&b, "- **Sample size:** %d bits\n", doc.Bits)
	fmt.Fprintf(&b, "- **Block size (Block Frequency):** %d\n", doc.BlockSize)
	fmt.Fprintf(&b, "- **Alpha:** %g\n", doc.Alpha)
	fmt.Fprintf(&b, "- **FDR correction:** %t\n\n", r.FDREnabled)

	b.WriteString("## Statistical Tests\n\n")
	b.WriteString("| Test | p-value | q-value (BH) | Raw | FDR | Verdict |\n")
	b.WriteString("|------|---------|--------------|-----|-----|---------|\n")
	rows := []struct {
		label, key    string
		pass, fdrPass bool
	}{
		{"Mono_bit", "mono_bit", d.MonoBitPass, d.MonoBitFDRPass},
		{"Runs", "runs", d.RunsPass, d.RunsFDRPass},
		{"Block Frequency", "block_frequency", d.BlockFrequencyPass, d.BlockFrequencyFDRPass},
		{fmt.Sprintf("Approximate Entropy (m=%d)", r.PatternLength), "approx_entropy", d.ApproxEntropyPass, d.ApproxEntropyFDRPass},
	}
	for _, row := range rows {
		p := r.PValsRaw[row.key]
		fmt.Fprintf(&b, "| %s | `%.6f` | `%.6f` | %s | %s | **%s** |\n",
			row.label, p, r.PValsFDR[row.key], verdict(p > r.Alpha), verdict(row.fdrPass), verdict(row.pass))
	}
	b.WriteString("\n")

	b.WriteString("## Health Tests (SP 800-90B)\n\n")
	rct := r.Health.RCT
	fmt.Fprintf(&b, "- RCT: max run `%d`, cutoff `%d` - **%s**\n", rct.MaxRun, rct.Cutoff, verdict(rct.Pass))
	apt := r.Health.APT
	if apt.Pass == nil {
		fmt.Fprintf(&b, "- APT: not run (%s)\n", apt.Reason)
	} else {
		fmt.Fprintf(&b, "- APT: window `%d`, bounds `[%d, %d]`, %d of %d windows outside - **%s**\n",
			apt.Window, apt.Lower, apt.Upper, len(apt.Violations), apt.NWindows, verdict(*apt.Pass))
	}
	b.WriteString("\n")

	b.WriteString("## Supporting Metrics\n\n")
	if r.ShannonEntropy != nil {
		fmt.Fprintf(&b, "- Shannon entropy: `%.5f` bits/bit - **%s**\n", *r.ShannonEntropy, warnVerdict(d.EntropyPass))
	}
	if r.CompressionRatio != nil {
		fmt.Fprintf(&b, "- Compression ratio (zlib): `%.5f` - **%s**\n", *r.CompressionRatio, warnVerdict(d.CompressionPass))
	}
	if r.ShannonEntropy == nil && r.CompressionRatio == nil {
		b.WriteString("- not computed\n")
	}
	b.WriteString("\n")

	b.WriteString("## Overall\n\n")
	fmt.Fprintf(&b, "- Overall (FDR): **%s**\n", verdict(d.OverallPassFDR))
	fmt.Fprintf(&b, "- Overall (raw): **%s**\n\n", verdict(d.OverallPassRaw))

	if len(doc.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range doc.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if len(doc.Advice) > 0 {
		b.WriteString("## Advice\n\n")
		for _, a := range doc.Advice {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	b.WriteString(Glossary(doc.Alpha))
	return b.String()
}

// Glossary explains every reported test at significance level alpha.
func Glossary(alpha float64) string {
	return fmt.Sprintf(`### Test glossary (alpha=%g)
- **Mono_bit (Frequency):** Checks overall balance of 0/1 across the whole stream.
- **Runs:** Checks the count of runs (contiguous 0s/1s). Too many or too few implies non-random oscillation.
- **Block Frequency:** Splits data into fixed-size blocks and looks for local bias per block.
- **Approximate Entropy:** Detects repeating/local regularity using overlapping patterns; lower ApEn means more structure.
- **Shannon entropy (bits/bit):** 1.0 is ideal for Bernoulli(0.5); lower means bias.
- **Compression ratio (zlib):** Random data should not compress (ratio close to 1.0).

**SP 800-90B health tests**
- **Repetition Count (RCT):** Fails if any run of identical bits exceeds the cutoff (e.g., 34). Long runs indicate a stuck or biased source.
- **Adaptive Proportion (APT):** Non-overlapping windows of size W; fails if any window's ones count falls outside [L, U] from Binomial(W, 0.5) at alpha/2.

**Multiple testing (BH-FDR)**
- q-values control the false discovery rate across the p-value tests.
  **Overall (FDR)** passes only if no test is rejected at level alpha *and* both health tests pass.
`, alpha)
}
