package rating

import (
	"github.com/shopspring/decimal"

	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// ApplyFees applies mandatory fees plus the selected ones, once, to the annual premium
func ApplyFees(plan *rateplan.Snapshot, premium decimal.Decimal, selected []string) (decimal.Decimal, []AppliedAdjustment, error) {
	want := make(map[string]bool, len(selected))
	for _, code := range selected {
		if _, ok := plan.Fee(code); !ok {
			return decimal.Zero, nil, rerrors.UnknownOption(KindFee, code, "").WithContext("plan_id", plan.ID())
		}
		want[code] = true
	}

	var steps []AppliedAdjustment
	for _, f := range plan.Fees() {
		if !f.Mandatory && !want[f.Code] {
			continue
		}
		next := f.Apply(premium)
		step := applied(KindFee, f.Code, string(f.Type), string(f.Mode), f.Value, premium, next)
		step.Name = f.Name
		steps = append(steps, step)
		premium = next
	}
	return premium, steps, nil
}
