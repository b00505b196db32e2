package rating

import (
	"sort"

	"github.com/shopspring/decimal"

	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// RiderSet returns the rider codes that apply: defaults plus requested, minus excluded.
// The result is in plan sequence order.
func RiderSet(plan *rateplan.Snapshot, requested, excluded []string) ([]string, error) {
	want := make(map[string]bool, len(requested))
	for _, code := range requested {
		if _, ok := plan.Rider(code); !ok {
			return nil, rerrors.UnknownOption(KindRider, code, "").WithContext("plan_id", plan.ID())
		}
		want[code] = true
	}
	drop := make(map[string]bool, len(excluded))
	for _, code := range excluded {
		if _, ok := plan.Rider(code); !ok {
			return nil, rerrors.UnknownOption(KindRider, code, "").WithContext("plan_id", plan.ID())
		}
		if want[code] {
			return nil, rerrors.Input("rider " + code + " is both requested and excluded").
				WithContext("code", code)
		}
		drop[code] = true
	}

	var out []string
	for _, r := range plan.Riders() {
		if (r.IsDefault || want[r.Code]) && !drop[r.Code] {
			out = append(out, r.Code)
		}
	}
	return out, nil
}

// ApplyRiders layers the rider set onto the fully factor-rated premium
func ApplyRiders(plan *rateplan.Snapshot, premium, units decimal.Decimal, requested, excluded []string) (decimal.Decimal, []AppliedAdjustment, error) {
	codes, err := RiderSet(plan, requested, excluded)
	if err != nil {
		return decimal.Zero, nil, err
	}

	var steps []AppliedAdjustment
	for _, code := range codes {
		r, _ := plan.Rider(code)
		next := r.Adjustment.Apply(premium, units)
		step := applied(KindRider, r.Code, "", r.Adjustment.Mode(), r.Adjustment.Value(), premium, next)
		step.Name = r.Name
		steps = append(steps, step)
		premium = next
	}
	return premium, steps, nil
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
