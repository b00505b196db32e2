// Package quoting puts the rating engine behind plan resolution, observability
// and multi-carrier comparison.
package quoting

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	"premium-rating/core/rateplan"
	"premium-rating/core/rating"
)

// Source says where a quote came from
type Source string

const (
	SourcePlan    Source = "plan"
	SourceCarrier Source = "carrier_api"
)

// Coverage is one line of what a quote covers
type Coverage struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Quote is the comparison-ready shape both internally rated and
// carrier-fetched quotes normalise to. Premiums are rounded to currency.
type Quote struct {
	CarrierID     string               `json:"carrier_id"`
	Source        Source               `json:"source"`
	ProductType   rateplan.ProductType `json:"product_type"`
	PlanID        string               `json:"plan_id,omitempty"`
	PlanVersion   string               `json:"plan_version,omitempty"`
	Reference     string               `json:"reference,omitempty"`
	Mode          rateplan.PaymentMode `json:"mode"`
	AnnualPremium decimal.Decimal      `json:"annual_premium"`
	ModalPremium  decimal.Decimal      `json:"modal_premium"`
	Coverages     []Coverage           `json:"coverages"`
	Riders        []string             `json:"riders"`
	Exclusions    []string             `json:"exclusions"`
	Lines         []rating.Line        `json:"lines,omitempty"`
	Rating        *rating.RatingResult `json:"rating,omitempty"`
}

// CarrierRequest is what a carrier adapter is asked to price
type CarrierRequest struct {
	Profile   rating.ApplicantProfile
	Selection rating.ProductSelection
}

// ExternalQuote is a carrier API's answer before normalisation
type ExternalQuote struct {
	CarrierID     string
	ProductType   rateplan.ProductType
	Reference     string
	Mode          rateplan.PaymentMode
	AnnualPremium decimal.Decimal
	ModalPremium  decimal.Decimal
	Coverages     []Coverage
	Riders        []string
	Exclusions    []string
}

// CarrierAdapter prices remotely for carriers that expose a rating API
type CarrierAdapter interface {
	CarrierID() string
	Supports(pt rateplan.ProductType) bool
	Quote(ctx context.Context, req CarrierRequest) (*ExternalQuote, error)
}

// AdapterSource lists the registered carrier adapters
type AdapterSource interface {
	Adapters() []CarrierAdapter
}

// FromRating normalises an engine result
func FromRating(r *rating.RatingResult, plan *rateplan.Snapshot, sel rating.ProductSelection) Quote {
	q := Quote{
		CarrierID:     r.CarrierID,
		Source:        SourcePlan,
		ProductType:   r.ProductType,
		PlanID:        r.PlanID,
		PlanVersion:   r.PlanVersion,
		Reference:     r.Fingerprint,
		Mode:          r.Mode,
		AnnualPremium: determinism.RoundCurrency(r.AnnualPremium),
		ModalPremium:  r.ModalPremium,
		Coverages: []Coverage{{
			Name:  plan.Schema().ExposureLabel,
			Value: determinism.FormatCurrency(sel.ExposureAmount),
		}},
		Riders:     []string{},
		Exclusions: []string{},
		Lines:      r.Lines(),
		Rating:     r,
	}
	for _, f := range r.AppliedFactors {
		q.Coverages = append(q.Coverages, Coverage{Name: f.Code, Value: f.Option})
	}
	for _, a := range r.AppliedRiders {
		name := a.Name
		if name == "" {
			name = a.Code
		}
		q.Riders = append(q.Riders, name)
	}
	return q
}

// FromExternal normalises a carrier API quote
func FromExternal(ext *ExternalQuote) Quote {
	q := Quote{
		CarrierID:     ext.CarrierID,
		Source:        SourceCarrier,
		ProductType:   ext.ProductType,
		Reference:     ext.Reference,
		Mode:          ext.Mode,
		AnnualPremium: determinism.RoundCurrency(ext.AnnualPremium),
		ModalPremium:  determinism.RoundCurrency(ext.ModalPremium),
		Coverages:     append([]Coverage{}, ext.Coverages...),
		Riders:        append([]string{}, ext.Riders...),
		Exclusions:    append([]string{}, ext.Exclusions...),
	}
	if q.Mode == "" {
		q.Mode = rateplan.ModeAnnual
	}
	if q.ModalPremium.IsZero() && q.Mode == rateplan.ModeAnnual {
		q.ModalPremium = q.AnnualPremium
	}
	return q
}

// SortByPremium orders quotes by modal premium, then carrier.
// Comparison results carry no order of their own; this is for display.
func SortByPremium(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		if c := quotes[i].ModalPremium.Cmp(quotes[j].ModalPremium); c != 0 {
			return c < 0
		}
		return quotes[i].CarrierID < quotes[j].CarrierID
	})
}
