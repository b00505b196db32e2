// Package api - Thin HTTP layer over the quoting service.
// Handlers decode, validate and serialise; all pricing happens in core packages.
package api

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
	"premium-rating/core/rating"
	rerrors "premium-rating/internal/errors"
)

// QuoteRequest is the body of POST /v1/quotes and POST /v1/comparisons
type QuoteRequest struct {
	ProductType string    `json:"product_type" validate:"required,oneof=disability_ltd life_term long_term_care"`
	CarrierID   string    `json:"carrier_id,omitempty" validate:"omitempty,max=64"`
	Applicant   Applicant `json:"applicant"`

	// ExposureAmount is in the product's native unit (monthly benefit, face amount, daily benefit)
	ExposureAmount string `json:"exposure_amount" validate:"required,numeric"`

	Factors        map[string]string `json:"factors,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	Riders         []string          `json:"riders,omitempty" validate:"omitempty,dive,required"`
	ExcludedRiders []string          `json:"excluded_riders,omitempty" validate:"omitempty,dive,required"`
	Fees           []string          `json:"fees,omitempty" validate:"omitempty,dive,required"`

	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=annual semiannual quarterly monthly"`
	AsOf string `json:"as_of,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Applicant is the rating-relevant part of an applicant
type Applicant struct {
	Age               int     `json:"age" validate:"gte=0,lte=120"`
	Sex               string  `json:"sex,omitempty" validate:"omitempty,oneof=M F m f male female MALE FEMALE"`
	State             string  `json:"state,omitempty" validate:"omitempty,len=2,alpha"`
	Tobacco           *bool   `json:"tobacco,omitempty"`
	OccupationClass   string  `json:"occupation_class,omitempty" validate:"omitempty,max=16"`
	UnderwritingClass string  `json:"underwriting_class,omitempty" validate:"omitempty,max=32"`
	HealthClass       string  `json:"health_class,omitempty" validate:"omitempty,max=32"`
	BuildClass        string  `json:"build_class,omitempty" validate:"omitempty,oneof=underweight normal overweight obese"`
	BMI               *string `json:"bmi,omitempty" validate:"omitempty,numeric"`
	AnnualIncome      *string `json:"annual_income,omitempty" validate:"omitempty,numeric"`
}

// validate is safe for concurrent use and caches struct metadata
var validate = validator.New()

// Validate checks field-level constraints
func (r *QuoteRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return rerrors.Input(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
	}
	return rerrors.Input("invalid request: "+strings.Join(fields, "; ")).WithContext("fields", fields)
}

// Profile converts the applicant to the engine's profile
func (r *QuoteRequest) Profile() (rating.ApplicantProfile, error) {
	a := r.Applicant
	p := rating.ApplicantProfile{
		Age:               a.Age,
		Sex:               a.Sex,
		State:             a.State,
		Tobacco:           a.Tobacco,
		OccupationClass:   a.OccupationClass,
		UnderwritingClass: a.UnderwritingClass,
		HealthClass:       a.HealthClass,
		BuildClass:        a.BuildClass,
	}
	var err error
	if p.BMI, err = optionalDecimal("applicant.bmi", a.BMI); err != nil {
		return p, err
	}
	if p.AnnualIncome, err = optionalDecimal("applicant.annual_income", a.AnnualIncome); err != nil {
		return p, err
	}
	return p, nil
}

// Selection converts the product choices to the engine's selection
func (r *QuoteRequest) Selection() (rating.ProductSelection, error) {
	amount, err := decimal.NewFromString(r.ExposureAmount)
	if err != nil {
		return rating.ProductSelection{}, rerrors.Input("exposure_amount is not a decimal").WithContext("value", r.ExposureAmount)
	}
	sel := rating.ProductSelection{
		ProductType:    rateplan.ProductType(r.ProductType),
		CarrierID:      r.CarrierID,
		ExposureAmount: amount,
		Factors:        r.Factors,
		Riders:         r.Riders,
		ExcludedRiders: r.ExcludedRiders,
		Fees:           r.Fees,
		Mode:           rateplan.PaymentMode(r.Mode),
	}
	if r.AsOf != "" {
		asOf, err := time.Parse(rateplan.DateLayout, r.AsOf)
		if err != nil {
			return sel, rerrors.Input("as_of must be YYYY-MM-DD").WithContext("value", r.AsOf)
		}
		sel.AsOf = asOf
	}
	return sel, nil
}

func optionalDecimal(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, rerrors.Input(field + " is not a decimal").WithContext("value", *s)
	}
	return &d, nil
}

// QuoteResponse is the body returned by POST /v1/quotes
type QuoteResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Quote     quoting.Quote `json:"quote"`
}

// ComparisonResponse is the body returned by POST /v1/comparisons
type ComparisonResponse struct {
	RequestID string `json:"request_id,omitempty"`
	*quoting.Comparison
}

// PlanSummary describes one plan version in GET /v1/plans
type PlanSummary struct {
	ID            string               `json:"id"`
	ProductType   rateplan.ProductType `json:"product_type"`
	CarrierID     string               `json:"carrier_id"`
	Version       string               `json:"version"`
	EffectiveFrom string               `json:"effective_from"`
	ExpiresOn     string               `json:"expires_on,omitempty"`
	Active        bool                 `json:"active"`
	ContentHash   string               `json:"content_hash"`
	Entries       int                  `json:"entries"`
	Modes         []string             `json:"modes"`
}

// Summarize describes a snapshot without its tables
func Summarize(s *rateplan.Snapshot) PlanSummary {
	plan := s.Plan()
	out := PlanSummary{
		ID:            plan.ID,
		ProductType:   plan.ProductType,
		CarrierID:     plan.CarrierID,
		Version:       plan.Version,
		EffectiveFrom: plan.EffectiveFrom.Format(rateplan.DateLayout),
		Active:        plan.Active,
		ContentHash:   s.ContentHash().Hex(),
		Entries:       len(s.Entries()),
		Modes:         []string{},
	}
	if plan.ExpiresOn != nil {
		out.ExpiresOn = plan.ExpiresOn.Format(rateplan.DateLayout)
	}
	for _, m := range s.Modes() {
		out.Modes = append(out.Modes, string(m))
	}
	return out
}

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error type and whatever context the engine attached
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}
