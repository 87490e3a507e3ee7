package randomness

import "fmt"

// TestDecision carries both views of one statistical test: the raw p-value
// and its FDR-adjusted q-value, each with its own verdict.
type TestDecision struct {
	Name      string
	RawP      float64
	AdjustedP float64
	RawPass   bool // RawP > alpha
	FDRPass   bool // AdjustedP > alpha
	Pass      bool // RawPass, and FDRPass when FDR is enabled
}

// DecisionReport is the final verdict of one analysis. Tests always appear in
// the order of the raw PValueVector. OverallPass is authoritative: it uses
// the FDR-adjusted decisions when FDR is enabled and the raw decisions
// otherwise. OverallPassRaw always uses the raw decisions.
type DecisionReport struct {
	Alpha          float64
	FDREnabled     bool
	Tests          []TestDecision
	RCTPass        bool
	APTPass        bool
	OverallPass    bool
	OverallPassRaw bool
}

// Test returns the decision recorded for name.
func (r DecisionReport) Test(name string) (TestDecision, bool) {
	for _, d := range r.Tests {
		if d.Name == name {
			return d, true
		}
	}
	return TestDecision{}, false
}

// Decide combines raw p-values, their adjusted counterparts and the two
// health results into a DecisionReport. raw and adjusted must carry the same
// names in the same order. A skipped health test does not fail the report.
func Decide(raw PValueVector, adjusted AdjustedPValueVector, rct, apt HealthResult, alpha float64, fdrEnabled bool) (DecisionReport, error) {
	if !(alpha > 0 && alpha < 1) {
		return DecisionReport{}, newError("Decide", ErrInvalidParameter, fmt.Sprintf("alpha must be in (0, 1), got %g", alpha))
	}
	if err := validateVector("Decide", raw); err != nil {
		return DecisionReport{}, err
	}
	if len(adjusted) != len(raw) {
		return DecisionReport{}, newError("Decide", ErrMismatchedVectors, fmt.Sprintf("%d raw vs %d adjusted values", len(raw), len(adjusted)))
	}
	for i := range raw {
		if raw[i].Name != adjusted[i].Name {
			return DecisionReport{}, newError("Decide", ErrMismatchedVectors, fmt.Sprintf("position %d: %q vs %q", i, raw[i].Name, adjusted[i].Name))
		}
	}

	report := DecisionReport{
		Alpha:      alpha,
		FDREnabled: fdrEnabled,
		Tests:      make([]TestDecision, len(raw)),
		RCTPass:    rct.Passed,
		APTPass:    apt.Passed,
	}

	health := rct.Passed && apt.Passed
	allRaw, allFDR := true, true
	for i := range raw {
		d := TestDecision{
			Name:      raw[i].Name,
			RawP:      raw[i].Value,
			AdjustedP: adjusted[i].Value,
			RawPass:   raw[i].Value > alpha,
			FDRPass:   adjusted[i].Value > alpha,
		}
		d.Pass = d.RawPass && (!fdrEnabled || d.FDRPass)
		report.Tests[i] = d

		allRaw = allRaw && d.RawPass
		allFDR = allFDR && d.FDRPass
	}

	report.OverallPassRaw = allRaw && health
	if fdrEnabled {
		report.OverallPass = allFDR && health
	} else {
		report.OverallPass = report.OverallPassRaw
	}

	return report, nil
}
