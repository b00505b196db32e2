package rating

import (
	"fmt"

	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// Adjustment kinds
const (
	KindFactor = "factor"
	KindRider  = "rider"
	KindFee    = "fee"
)

// AppliedAdjustment is one itemized step of the premium chain.
// Effect is After minus Before at full precision.
type AppliedAdjustment struct {
	Kind   string          `json:"kind"`
	Code   string          `json:"code"`
	Name   string          `json:"name,omitempty"`
	Option string          `json:"option,omitempty"`
	Mode   string          `json:"mode"`
	Value  decimal.Decimal `json:"value"`
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
	Effect decimal.Decimal `json:"effect"`
}

func applied(kind, code, option string, mode string, value, before, after decimal.Decimal) AppliedAdjustment {
	return AppliedAdjustment{
		Kind:   kind,
		Code:   code,
		Option: option,
		Mode:   mode,
		Value:  value,
		Before: before,
		After:  after,
		Effect: after.Sub(before),
	}
}

// RatingResult is an itemized premium. Amounts are full precision except
// ModalPremium, which is already rounded to currency.
type RatingResult struct {
	Fingerprint string `json:"fingerprint"`

	PlanID      string               `json:"plan_id"`
	PlanVersion string               `json:"plan_version"`
	PlanHash    string               `json:"plan_hash"`
	ProductType rateplan.ProductType `json:"product_type"`
	CarrierID   string               `json:"carrier_id,omitempty"`

	Key        []string             `json:"key"`
	Wildcarded []rateplan.Dimension `json:"wildcarded,omitempty"`

	BaseRate      decimal.Decimal `json:"base_rate"`
	ExposureUnits decimal.Decimal `json:"exposure_units"`
	BasePremium   decimal.Decimal `json:"base_premium"`

	AppliedFactors []AppliedAdjustment `json:"applied_factors"`
	AppliedRiders  []AppliedAdjustment `json:"applied_riders"`
	AppliedFees    []AppliedAdjustment `json:"applied_fees"`

	AnnualPremium decimal.Decimal      `json:"annual_premium"`
	Mode          rateplan.PaymentMode `json:"mode"`
	ModalFactor   decimal.Decimal      `json:"modal_factor"`
	ModalFlatFee  decimal.Decimal      `json:"modal_flat_fee"`
	ModalPremium  decimal.Decimal      `json:"modal_premium"`
}

// Adjustments returns factors, riders and fees in application order
func (r *RatingResult) Adjustments() []AppliedAdjustment {
	out := make([]AppliedAdjustment, 0, len(r.AppliedFactors)+len(r.AppliedRiders)+len(r.AppliedFees))
	out = append(out, r.AppliedFactors...)
	out = append(out, r.AppliedRiders...)
	return append(out, r.AppliedFees...)
}

// Reconcile checks that the itemized effects add back up to the annual premium
func (r *RatingResult) Reconcile() error {
	total := r.BasePremium
	for _, a := range r.Adjustments() {
		total = total.Add(a.Effect)
	}
	if !total.Equal(r.AnnualPremium) {
		return rerrors.Internal(fmt.Sprintf("itemization sums to %s, annual premium is %s", total, r.AnnualPremium), nil).
			WithContext("plan_id", r.PlanID)
	}
	return nil
}

// Line is one display row of an itemized quote, rounded to currency
type Line struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Amount string `json:"amount"`
}

// Lines renders the itemization for display. Only here, and in ModalPremium,
// are amounts rounded.
func (r *RatingResult) Lines() []Line {
	lines := []Line{{
		Label:  "base premium",
		Detail: fmt.Sprintf("%s x %s units", r.BaseRate, r.ExposureUnits),
		Amount: determinism.FormatCurrency(r.BasePremium),
	}}
	for _, a := range r.Adjustments() {
		label := a.Kind + " " + a.Code
		detail := fmt.Sprintf("%s %s", a.Mode, a.Value)
		if a.Option != "" {
			detail = a.Option + ", " + detail
		}
		lines = append(lines, Line{Label: label, Detail: detail, Amount: determinism.FormatCurrency(a.Effect)})
	}
	lines = append(lines,
		Line{Label: "annual premium", Amount: determinism.FormatCurrency(r.AnnualPremium)},
		Line{
			Label:  string(r.Mode) + " premium",
			Detail: fmt.Sprintf("x %s + %s", r.ModalFactor, determinism.FormatCurrency(r.ModalFlatFee)),
			Amount: determinism.FormatCurrency(r.ModalPremium),
		},
	)
	return lines
}
