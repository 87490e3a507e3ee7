package randomness

import (
	"fmt"
	"math"
	"sort"
)

// DefaultAlpha is the significance level used for every decision unless the
// caller chooses another.
const DefaultAlpha = 0.01

// BenjaminiHochberg returns BH step-up adjusted p-values (q-values) for raw,
// in raw's order. p-values are ranked ascending with ties resolved by their
// original position, q_(i) = p_(i)*k/i is computed per rank, and a running
// minimum is taken from the largest rank downward so that adjusted values
// read in ranked order never decrease. Each q-value is clamped to 1 and is
// never smaller than its raw p-value.
func BenjaminiHochberg(raw PValueVector) (AdjustedPValueVector, error) {
	if err := validateVector("BenjaminiHochberg", raw); err != nil {
		return nil, err
	}

	order := rankOrder(raw)
	k := float64(len(raw))

	adjusted := make(AdjustedPValueVector, len(raw))
	running := 1.0
	for rank := len(order) - 1; rank >= 0; rank-- {
		idx := order[rank]
		q := raw[idx].Value * k / float64(rank+1)
		if q < running {
			running = q
		}
		// p*k/i can round one ulp below p at i == k.
		adjusted[idx] = PValue{Name: raw[idx].Name, Value: math.Max(math.Min(running, 1), raw[idx].Value)}
	}

	return adjusted, nil
}

// StepUpRejections applies the classic Benjamini-Hochberg step-up rule to raw
// at level alpha: with p-values ranked ascending, find the largest rank i
// with p_(i) <= i*alpha/k and reject every hypothesis of rank <= i. The
// result is keyed by test name.
func StepUpRejections(raw PValueVector, alpha float64) (map[string]bool, error) {
	if err := validateVector("StepUpRejections", raw); err != nil {
		return nil, err
	}
	if !(alpha > 0 && alpha < 1) {
		return nil, newError("StepUpRejections", ErrInvalidParameter, fmt.Sprintf("alpha must be in (0, 1), got %g", alpha))
	}

	order := rankOrder(raw)
	k := float64(len(raw))

	cut := -1
	for rank, idx := range order {
		if raw[idx].Value <= float64(rank+1)*alpha/k {
			cut = rank
		}
	}

	rejected := make(map[string]bool, len(raw))
	for rank, idx := range order {
		rejected[raw[idx].Name] = rank <= cut
	}
	return rejected, nil
}

// rankOrder returns indices of v sorted by ascending value; equal values keep
// their original relative order.
func rankOrder(v PValueVector) []int {
	order := make([]int, len(v))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return v[order[a]].Value < v[order[b]].Value
	})
	return order
}

func validateVector(op string, v PValueVector) error {
	if len(v) == 0 {
		return newError(op, ErrInvalidParameter, "p-value vector is empty")
	}
	seen := make(map[string]struct{}, len(v))
	for _, p := range v {
		if math.IsNaN(p.Value) || p.Value < 0 || p.Value > 1 {
			return newError(op, ErrInvalidParameter, fmt.Sprintf("p-value for %q out of [0, 1]: %g", p.Name, p.Value))
		}
		if _, dup := seen[p.Name]; dup {
			return newError(op, ErrInvalidParameter, fmt.Sprintf("duplicate test name %q", p.Name))
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
