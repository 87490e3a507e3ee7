// Package report converts an analysis into the JSON document returned by the
// API and CLI, and renders it as Markdown.
package report

import (
	"github.com/AmmannChristian/randqa/internal/heuristics"
	"github.com/AmmannChristian/randqa/internal/randomness"
)

// Meta describes where the analysed bits came from.
type Meta struct {
	Source   string  // generator name, "file", "hex", "text" or "bytes"
	Seed     *uint64 // nil for non-deterministic or external input
	BitOrder string
	Version  string
}

// Document is the serialisable analysis result.
type Document struct {
	Source    string   `json:"source"`
	Seed      *uint64  `json:"seed"`
	Bits      int      `json:"bits"`
	BitOrder  string   `json:"bit_order,omitempty"`
	BlockSize int      `json:"block_size"`
	Alpha     float64  `json:"alpha"`
	Version   string   `json:"version,omitempty"`
	Results   Results  `json:"results"`
	Warnings  []string `json:"warnings"`
	Advice    []string `json:"advice"`
}

// Results mirrors the per-run result block.
type Results struct {
	MonoBitP         float64            `json:"mono_bit_p"`
	RunsP            float64            `json:"runs_p"`
	BlockFrequencyP  float64            `json:"block_frequency_p"`
	ApproxEntropyP   float64            `json:"approx_entropy_p"`
	ShannonEntropy   *float64           `json:"shannon_entropy_bits_per_bit"`
	CompressionRatio *float64           `json:"compression_ratio"`
	Statistics       []Statistic        `json:"statistics"`
	Health           Health             `json:"health"`
	PValsRaw         map[string]float64 `json:"pvals_raw"`
	PValsFDR         map[string]float64 `json:"pvals_fdr"`
	Decisions        Decisions          `json:"decisions"`
	Alpha            float64            `json:"alpha"`
	FDREnabled       bool               `json:"fdr_enabled"`
	PatternLength    int                `json:"apen_pattern_length"`
	RCTCutoff        int                `json:"rct_cutoff"`
	APTWindow        int                `json:"apt_window"`
}

// Statistic is one hypothesis test with its diagnostics.
type Statistic struct {
	Name      string             `json:"name"`
	PValue    float64            `json:"p_value"`
	Statistic float64            `json:"statistic"`
	Details   map[string]float64 `json:"details,omitempty"`
}

// Health groups both health test records.
type Health struct {
	RCT RCT `json:"rct"`
	APT APT `json:"apt"`
}

// RCT is the repetition count record.
type RCT struct {
	Pass            bool    `json:"pass"`
	MaxRun          int     `json:"max_run"`
	Cutoff          int     `json:"cutoff"`
	MinEntropy      float64 `json:"min_entropy"`
	ExceedanceProb  float64 `json:"exceedance_p"`
	FalseAlarmBound float64 `json:"approx_p"`
	N               int     `json:"n"`
}

// APT is the adaptive proportion record. Pass is null when the test was
// skipped.
type APT struct {
	Pass       *bool       `json:"pass"`
	Window     int         `json:"window"`
	Alpha      float64     `json:"alpha"`
	Lower      int         `json:"lower"`
	Upper      int         `json:"upper"`
	Violations []Violation `json:"violations"`
	N          int         `json:"n"`
	NWindows   int         `json:"n_windows"`
	Reason     string      `json:"reason,omitempty"`
}

// Violation is an APT window outside the bounds.
type Violation struct {
	WindowIndex int `json:"window_index"`
	Ones        int `json:"ones"`
}

// Decisions holds every verdict. Supporting-metric verdicts are warnings and
// do not feed the overall decisions.
type Decisions struct {
	MonoBitPass           bool  `json:"mono_bit_pass"`
	RunsPass              bool  `json:"runs_pass"`
	BlockFrequencyPass    bool  `json:"block_frequency_pass"`
	ApproxEntropyPass     bool  `json:"approx_entropy_pass"`
	MonoBitFDRPass        bool  `json:"mono_bit_fdr_pass"`
	RunsFDRPass           bool  `json:"runs_fdr_pass"`
	BlockFrequencyFDRPass bool  `json:"block_frequency_fdr_pass"`
	ApproxEntropyFDRPass  bool  `json:"approx_entropy_fdr_pass"`
	EntropyPass           *bool `json:"entropy_pass"`
	CompressionPass       *bool `json:"compression_pass"`
	RCTPass               bool  `json:"rct_pass"`
	APTPass               *bool `json:"apt_pass"`
	OverallPassFDR        bool  `json:"overall_pass_fdr"`
	OverallPassRaw        bool  `json:"overall_pass_raw"`
	OverallPass           bool  `json:"overall_pass"`
}

// Build assembles a Document. metrics may be nil.
func Build(meta Meta, r *randomness.Report, metrics *heuristics.Metrics, advice []string) Document {
	res := Results{
		Statistics:    make([]Statistic, 0, len(r.Statistics)),
		PValsRaw:      make(map[string]float64, len(r.Raw)),
		PValsFDR:      make(map[string]float64, len(r.Adjusted)),
		Alpha:         r.Params.Alpha,
		FDREnabled:    r.Params.FDREnabled,
		PatternLength: r.Params.PatternLength,
		RCTCutoff:     r.Params.RCTCutoff,
		APTWindow:     r.Params.APTWindow,
	}

	for _, s := range r.Statistics {
		res.Statistics = append(res.Statistics, Statistic{
			Name:      s.Name,
			PValue:    s.PValue,
			Statistic: s.Statistic,
			Details:   s.Details,
		})
	}
	for _, p := range r.Raw {
		res.PValsRaw[p.Name] = p.Value
	}
	for _, p := range r.Adjusted {
		res.PValsFDR[p.Name] = p.Value
	}
	res.MonoBitP = res.PValsRaw[randomness.TestMonoBit]
	res.RunsP = res.PValsRaw[randomness.TestRuns]
	res.BlockFrequencyP = res.PValsRaw[randomness.TestBlockFrequency]
	res.ApproxEntropyP = res.PValsRaw[randomness.TestApproxEntropy]

	if ev := r.RCT.RCT; ev != nil {
		res.Health.RCT = RCT{
			Pass:            r.RCT.Passed,
			MaxRun:          ev.MaxRun,
			Cutoff:          ev.Cutoff,
			MinEntropy:      ev.MinEntropy,
			ExceedanceProb:  ev.ExceedanceProb,
			FalseAlarmBound: ev.FalseAlarmBound,
			N:               ev.BitsExamined,
		}
	}
	res.Health.APT = buildAPT(r.APT)

	d := &res.Decisions
	for _, td := range r.Decision.Tests {
		switch td.Name {
		case randomness.TestMonoBit:
			d.MonoBitPass, d.MonoBitFDRPass = td.Pass, td.FDRPass
		case randomness.TestRuns:
			d.RunsPass, d.RunsFDRPass = td.Pass, td.FDRPass
		case randomness.TestBlockFrequency:
			d.BlockFrequencyPass, d.BlockFrequencyFDRPass = td.Pass, td.FDRPass
		case randomness.TestApproxEntropy:
			d.ApproxEntropyPass, d.ApproxEntropyFDRPass = td.Pass, td.FDRPass
		}
	}
	d.RCTPass = r.Decision.RCTPass
	d.APTPass = res.Health.APT.Pass
	d.OverallPass = r.Decision.OverallPass
	d.OverallPassRaw = r.Decision.OverallPassRaw
	d.OverallPassFDR = r.Decision.OverallPass
	if !r.Decision.FDREnabled {
		d.OverallPassFDR = allFDR(r.Decision) && r.Decision.RCTPass && r.Decision.APTPass
	}

	warnings := append([]string{}, r.Warnings...)
	if st, ok := r.Statistic(randomness.TestRuns); ok && st.Details["precondition_met"] == 0 {
		warnings = append(warnings, "Runs test precondition |pi - 0.5| < 2/sqrt(n) not met; its p-value is set to 0.")
	}

	if metrics != nil {
		h, c := metrics.ShannonEntropy, metrics.CompressionRatio
		ep, cp := metrics.EntropyPass, metrics.CompressionPass
		res.ShannonEntropy, res.CompressionRatio = &h, &c
		d.EntropyPass, d.CompressionPass = &ep, &cp
		if !ep {
			warnings = append(warnings, "Shannon entropy is below 0.98 bits/bit.")
		}
		if !cp {
			warnings = append(warnings, "Compression ratio is below 0.95; the stream is compressible.")
		}
	}

	if advice == nil {
		advice = []string{}
	}

	return Document{
		Source:    meta.Source,
		Seed:      meta.Seed,
		Bits:      r.Bits,
		BitOrder:  meta.BitOrder,
		BlockSize: r.Params.BlockSize,
		Alpha:     r.Params.Alpha,
		Version:   meta.Version,
		Results:   res,
		Warnings:  warnings,
		Advice:    advice,
	}
}

func buildAPT(h randomness.HealthResult) APT {
	out := APT{Violations: []Violation{}, Reason: h.Reason}
	if !h.Skipped {
		pass := h.Passed
		out.Pass = &pass
	}
	ev := h.APT
	if ev == nil {
		return out
	}
	out.Window = ev.Window
	out.Alpha = ev.Alpha
	out.Lower = ev.Lower
	out.Upper = ev.Upper
	out.N = ev.BitsExamined
	out.NWindows = ev.Windows
	for _, v := range ev.Violations {
		out.Violations = append(out.Violations, Violation{WindowIndex: v.Index, Ones: v.Ones})
	}
	return out
}

func allFDR(r randomness.DecisionReport) bool {
	for _, td := range r.Tests {
		if !td.FDRPass {
			return false
		}
	}
	return true
}
