package rating

import (
	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// ApplyFactors runs every factor group of the plan over the seed premium in
// schema order. Each group needs exactly one selected option; nothing is
// skipped or defaulted.
func ApplyFactors(plan *rateplan.Snapshot, seed, units decimal.Decimal, selections map[string]string) (decimal.Decimal, []AppliedAdjustment, error) {
	for _, code := range determinism.SortedKeys(selections) {
		if _, ok := plan.Factor(code); !ok {
			return decimal.Zero, nil, rerrors.UnknownOption(KindFactor, code, selections[code]).
				WithContext("plan_id", plan.ID())
		}
	}

	premium := seed
	var steps []AppliedAdjustment
	for _, code := range plan.FactorCodes() {
		group, _ := plan.Factor(code)
		option, ok := selections[code]
		if !ok || option == "" {
			return decimal.Zero, nil, rerrors.UnknownOption(KindFactor, code, "").
				WithContext("options", group.Options())
		}
		row, ok := group.Option(option)
		if !ok {
			return decimal.Zero, nil, rerrors.UnknownOption(KindFactor, code, option).
				WithContext("options", group.Options())
		}

		next := row.Adjustment.Apply(premium, units)
		steps = append(steps, applied(KindFactor, code, option, row.Adjustment.Mode(), row.Adjustment.Value(), premium, next))
		premium = next
	}
	return premium, steps, nil
}
