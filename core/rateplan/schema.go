package rateplan

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Dimension names one rating dimension of a product schema
type Dimension string

const (
	DimAge               Dimension = "age"
	DimSex               Dimension = "sex"
	DimState             Dimension = "state"
	DimTobacco           Dimension = "tobacco"
	DimOccupationClass   Dimension = "occupation_class"
	DimUnderwritingClass Dimension = "underwriting_class"
)

// Tobacco dimension values
const (
	TobaccoUser    = "tobacco"
	TobaccoNonUser = "non_tobacco"
)

// ProfileAttribute names an applicant attribute a factor selection can be derived from
type ProfileAttribute string

const (
	AttrTobacco     ProfileAttribute = "tobacco"
	AttrHealthClass ProfileAttribute = "health_class"
	AttrBuildClass  ProfileAttribute = "build_class"
)

// ProductSchema is the fixed rating shape of a product type
type ProductSchema struct {
	ProductType ProductType

	// Dimensions is the ordered key layout of every RateEntry
	Dimensions []Dimension

	// WildcardOrder lists the wildcard-eligible dimensions, highest fallback priority first
	WildcardOrder []Dimension

	// FactorOrder is the order factor groups are applied in. Add-mode factors
	// layer onto the running premium, so this order changes results.
	FactorOrder []string

	// DerivedFactors maps factor groups to the profile attribute that selects them
	DerivedFactors map[string]ProfileAttribute

	// ExposureUnit is the coverage amount one base rate is priced per
	ExposureUnit decimal.Decimal

	// ExposureLabel describes the native exposure amount
	ExposureLabel string
}

var schemas = map[ProductType]*ProductSchema{
	DisabilityLTD: {
		ProductType:   DisabilityLTD,
		Dimensions:    []Dimension{DimAge, DimSex, DimState, DimOccupationClass, DimUnderwritingClass},
		WildcardOrder: []Dimension{DimUnderwritingClass, DimState},
		FactorOrder: []string{
			"elimination_period",
			"benefit_period",
			"definition",
			"partial_disability",
			"cola",
			"smoker_status",
			"build",
			"health_class",
		},
		DerivedFactors: map[string]ProfileAttribute{
			"smoker_status": AttrTobacco,
			"build":         AttrBuildClass,
			"health_class":  AttrHealthClass,
		},
		ExposureUnit:  decimal.NewFromInt(100),
		ExposureLabel: "monthly benefit",
	},
	LifeTerm: {
		ProductType:   LifeTerm,
		Dimensions:    []Dimension{DimAge, DimSex, DimTobacco, DimUnderwritingClass},
		WildcardOrder: []Dimension{DimUnderwritingClass},
		FactorOrder: []string{
			"term_length",
			"health_class",
			"build",
		},
		DerivedFactors: map[string]ProfileAttribute{
			"build":        AttrBuildClass,
			"health_class": AttrHealthClass,
		},
		ExposureUnit:  decimal.NewFromInt(1000),
		ExposureLabel: "face amount",
	},
	LongTermCare: {
		ProductType:   LongTermCare,
		Dimensions:    []Dimension{DimAge, DimSex, DimState, DimUnderwritingClass},
		WildcardOrder: []Dimension{DimState, DimUnderwritingClass},
		FactorOrder: []string{
			"elimination_period",
			"benefit_period",
			"inflation_protection",
			"shared_care",
			"partnership",
			"nonforfeiture",
			"marital_status",
			"health_class",
		},
		DerivedFactors: map[string]ProfileAttribute{
			"health_class": AttrHealthClass,
		},
		ExposureUnit:  decimal.NewFromInt(10),
		ExposureLabel: "daily benefit",
	},
}

// SchemaFor returns the schema of a product type
func SchemaFor(pt ProductType) (*ProductSchema, bool) {
	s, ok := schemas[pt]
	return s, ok
}

// ProductTypes returns all rated product types in sorted order
func ProductTypes() []ProductType {
	out := make([]ProductType, 0, len(schemas))
	for pt := range schemas {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Arity returns the number of key dimensions
func (s *ProductSchema) Arity() int {
	return len(s.Dimensions)
}

// Position returns the key position of a dimension, or -1
func (s *ProductSchema) Position(d Dimension) int {
	for i, dim := range s.Dimensions {
		if dim == d {
			return i
		}
	}
	return -1
}

// WildcardEligible reports whether d may hold a wildcard
func (s *ProductSchema) WildcardEligible(d Dimension) bool {
	for _, w := range s.WildcardOrder {
		if w == d {
			return true
		}
	}
	return false
}

// FactorRank returns the application position of a factor group, or -1
func (s *ProductSchema) FactorRank(code string) int {
	for i, c := range s.FactorOrder {
		if c == code {
			return i
		}
	}
	return -1
}

// NormalizeValue puts a categorical dimension value in canonical form.
// Plan entries and applicant vectors both pass through here so they compare equal.
func NormalizeValue(d Dimension, v string) string {
	v = strings.TrimSpace(v)
	switch d {
	case DimSex:
		switch strings.ToUpper(v) {
		case "M", "MALE":
			return "M"
		case "F", "FEMALE":
			return "F"
		}
		return strings.ToUpper(v)
	case DimState, DimOccupationClass:
		return strings.ToUpper(v)
	case DimUnderwritingClass, DimTobacco:
		return strings.ToLower(v)
	default:
		return v
	}
}
