// Package rating computes premiums from a sealed plan snapshot.
//
// The pipeline is fixed: dimension vector, base-rate lookup, factor groups,
// riders, fees, payment-mode conversion. Every stage is a pure function of the
// previous stage's output and the snapshot; nothing here blocks or mutates
// shared state, so any number of quotes may run against one snapshot.
package rating

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"premium-rating/core/rateplan"
)

// ApplicantProfile carries the applicant attributes a product may rate on.
// Only the subset a product's schema names is read.
type ApplicantProfile struct {
	Age               int              `json:"age"`
	Sex               string           `json:"sex,omitempty"`
	State             string           `json:"state,omitempty"`
	Tobacco           *bool            `json:"tobacco,omitempty"`
	OccupationClass   string           `json:"occupation_class,omitempty"`
	UnderwritingClass string           `json:"underwriting_class,omitempty"`
	HealthClass       string           `json:"health_class,omitempty"`
	BuildClass        string           `json:"build_class,omitempty"`
	BMI               *decimal.Decimal `json:"bmi,omitempty"`
	AnnualIncome      *decimal.Decimal `json:"annual_income,omitempty"`
}

// ProductSelection is what the applicant is buying
type ProductSelection struct {
	ProductType rateplan.ProductType `json:"product_type"`
	CarrierID   string               `json:"carrier_id,omitempty"`

	// ExposureAmount is in the product's native unit: monthly benefit,
	// daily benefit or face amount
	ExposureAmount decimal.Decimal `json:"exposure_amount"`

	Factors        map[string]string    `json:"factors,omitempty"`
	Riders         []string             `json:"riders,omitempty"`
	ExcludedRiders []string             `json:"excluded_riders,omitempty"`
	Fees           []string             `json:"fees,omitempty"`
	Mode           rateplan.PaymentMode `json:"mode,omitempty"`
	AsOf           time.Time            `json:"as_of"`
}

// Build classes derived from BMI when no class is given
const (
	BuildUnderweight = "underweight"
	BuildNormal      = "normal"
	BuildOverweight  = "overweight"
	BuildObese       = "obese"
)

// Smoker status options derived from the tobacco flag
const (
	SmokerStatusSmoker    = "smoker"
	SmokerStatusNonSmoker = "non_smoker"
)

var (
	bmiUnderweight = decimal.RequireFromString("18.5")
	bmiOverweight  = decimal.NewFromInt(25)
	bmiObese       = decimal.NewFromInt(30)
)

// buildClass returns the applicant's build class, from BMI when not given
func (p ApplicantProfile) buildClass() string {
	if p.BuildClass != "" {
		return strings.ToLower(strings.TrimSpace(p.BuildClass))
	}
	if p.BMI == nil {
		return ""
	}
	switch {
	case p.BMI.LessThan(bmiUnderweight):
		return BuildUnderweight
	case p.BMI.LessThan(bmiOverweight):
		return BuildNormal
	case p.BMI.LessThan(bmiObese):
		return BuildOverweight
	default:
		return BuildObese
	}
}

// attribute returns the profile value a derived factor group is selected by
func (p ApplicantProfile) attribute(a rateplan.ProfileAttribute) (string, bool) {
	switch a {
	case rateplan.AttrTobacco:
		if p.Tobacco == nil {
			return "", false
		}
		if *p.Tobacco {
			return SmokerStatusSmoker, true
		}
		return SmokerStatusNonSmoker, true
	case rateplan.AttrHealthClass:
		v := strings.ToLower(strings.TrimSpace(p.HealthClass))
		return v, v != ""
	case rateplan.AttrBuildClass:
		v := p.buildClass()
		return v, v != ""
	default:
		return "", false
	}
}

// effectiveFactors merges explicit selections with those derived from the profile.
// An explicit selection always wins.
func effectiveFactors(plan *rateplan.Snapshot, profile ApplicantProfile, explicit map[string]string) map[string]string {
	out := make(map[string]string, len(explicit)+len(plan.Schema().DerivedFactors))
	for code, opt := range explicit {
		out[code] = strings.TrimSpace(opt)
	}
	for code, attr := range plan.Schema().DerivedFactors {
		if _, chosen := out[code]; chosen {
			continue
		}
		if _, rated := plan.Factor(code); !rated {
			continue
		}
		if v, ok := profile.attribute(attr); ok {
			out[code] = v
		}
	}
	return out
}
