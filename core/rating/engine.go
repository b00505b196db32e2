package rating

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

var fingerprints = determinism.NewIDGenerator("quote")

// Rate prices one applicant against one plan snapshot.
//
// base rate x exposure units, then factor groups, riders, fees, and finally the
// payment-mode conversion. Identical inputs always produce an identical result,
// including its fingerprint.
func Rate(plan *rateplan.Snapshot, profile ApplicantProfile, sel ProductSelection) (*RatingResult, error) {
	if plan == nil {
		return nil, rerrors.Internal("rate called without a plan", nil)
	}
	if sel.ProductType != "" && sel.ProductType != plan.ProductType() {
		return nil, rerrors.Input(fmt.Sprintf("plan %s rates %s, not %s", plan.ID(), plan.ProductType(), sel.ProductType))
	}
	if sel.CarrierID != "" && sel.CarrierID != plan.CarrierID() {
		return nil, rerrors.Input(fmt.Sprintf("plan %s belongs to carrier %q, not %q", plan.ID(), plan.CarrierID(), sel.CarrierID))
	}
	if !sel.ExposureAmount.IsPositive() {
		return nil, rerrors.Input("exposure amount must be positive").
			WithContext("exposure", plan.Schema().ExposureLabel)
	}
	mode := sel.Mode
	if mode == "" {
		mode = rateplan.ModeAnnual
	}

	vector, err := BuildVector(profile, plan)
	if err != nil {
		return nil, err
	}
	match, err := Lookup(plan, vector)
	if err != nil {
		return nil, err
	}

	units := sel.ExposureAmount.Div(plan.Schema().ExposureUnit)
	base := match.Entry.Rate.Mul(units)

	factors := effectiveFactors(plan, profile, sel.Factors)
	premium, factorSteps, err := ApplyFactors(plan, base, units, factors)
	if err != nil {
		return nil, err
	}
	premium, riderSteps, err := ApplyRiders(plan, premium, units, sel.Riders, sel.ExcludedRiders)
	if err != nil {
		return nil, err
	}
	annual, feeSteps, err := ApplyFees(plan, premium, sel.Fees)
	if err != nil {
		return nil, err
	}
	installment, modal, err := ConvertModal(plan, annual, mode)
	if err != nil {
		return nil, err
	}

	result := &RatingResult{
		PlanID:         plan.ID(),
		PlanVersion:    plan.Version(),
		PlanHash:       plan.ContentHash().Hex(),
		ProductType:    plan.ProductType(),
		CarrierID:      plan.CarrierID(),
		Key:            match.Entry.Key.Strings(),
		Wildcarded:     match.Wildcarded,
		BaseRate:       match.Entry.Rate,
		ExposureUnits:  units,
		BasePremium:    base,
		AppliedFactors: factorSteps,
		AppliedRiders:  riderSteps,
		AppliedFees:    feeSteps,
		AnnualPremium:  annual,
		Mode:           mode,
		ModalFactor:    modal.Factor,
		ModalFlatFee:   modal.FlatFee,
		ModalPremium:   installment,
	}
	result.Fingerprint = fingerprint(plan, vector, units, factors, result)
	return result, nil
}

// fingerprint identifies a quote by the plan content and the normalised inputs
// that reached the engine.
func fingerprint(plan *rateplan.Snapshot, v Vector, units decimal.Decimal, factors map[string]string, r *RatingResult) string {
	parts := []string{plan.ContentHash().Hex(), v.Key().String(), units.String(), string(r.Mode)}
	for _, code := range determinism.SortedKeys(factors) {
		parts = append(parts, "f:"+code+"="+factors[code])
	}
	riders := make([]string, len(r.AppliedRiders))
	for i, a := range r.AppliedRiders {
		riders[i] = a.Code
	}
	fees := make([]string, len(r.AppliedFees))
	for i, a := range r.AppliedFees {
		fees[i] = a.Code
	}
	parts = append(parts,
		"r:"+strings.Join(sortedCopy(riders), ","),
		"x:"+strings.Join(sortedCopy(fees), ","),
	)
	return string(fingerprints.Generate(parts...))
}
