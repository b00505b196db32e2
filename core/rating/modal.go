package rating

import (
	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// ConvertModal turns an annual premium into one installment of mode.
// This is the only stage that rounds.
func ConvertModal(plan *rateplan.Snapshot, annual decimal.Decimal, mode rateplan.PaymentMode) (decimal.Decimal, rateplan.RateModalFactor, error) {
	row, ok := plan.Modal(mode)
	if !ok {
		offered := make([]string, 0, 4)
		for _, m := range plan.Modes() {
			offered = append(offered, string(m))
		}
		return decimal.Zero, rateplan.RateModalFactor{}, rerrors.ModeNotSupported(string(mode)).
			WithContext("offered", offered)
	}
	installment := determinism.RoundCurrency(annual.Mul(row.Factor).Add(row.FlatFee))
	return installment, row, nil
}
