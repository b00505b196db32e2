package rating

import (
	"fmt"
	"strconv"
	"strings"

	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// Vector is an applicant projected onto a product's ordered dimensions.
// Each position is either a concrete value or unset; an unset position can
// only be matched by a wildcard entry.
type Vector struct {
	dims   []rateplan.Dimension
	values []string
	set    []bool
}

// Len returns the vector arity
func (v Vector) Len() int { return len(v.dims) }

// Dimension returns the dimension at position i
func (v Vector) Dimension(i int) rateplan.Dimension { return v.dims[i] }

// Get returns the value at position i and whether it is set
func (v Vector) Get(i int) (string, bool) { return v.values[i], v.set[i] }

// Key returns the fully concrete key. Unset positions become wildcards.
func (v Vector) Key() rateplan.Key {
	cells := make([]rateplan.Cell, len(v.dims))
	for i := range v.dims {
		if v.set[i] {
			cells[i] = rateplan.Concrete(v.values[i])
		} else {
			cells[i] = rateplan.Any
		}
	}
	return rateplan.NewKey(cells...)
}

// String describes the vector for error messages, e.g. "age 50, sex M, state TX"
func (v Vector) String() string {
	parts := make([]string, len(v.dims))
	for i, d := range v.dims {
		if v.set[i] {
			parts[i] = fmt.Sprintf("%s %s", d, v.values[i])
		} else {
			parts[i] = fmt.Sprintf("%s any", d)
		}
	}
	return strings.Join(parts, ", ")
}

// BuildVector projects a profile onto the plan's product schema.
// Age resolves to a band the plan actually filed; there is no interpolation
// and no falling back to a neighbouring band.
func BuildVector(profile ApplicantProfile, plan *rateplan.Snapshot) (Vector, error) {
	schema := plan.Schema()
	v := Vector{
		dims:   schema.Dimensions,
		values: make([]string, schema.Arity()),
		set:    make([]bool, schema.Arity()),
	}

	for i, dim := range schema.Dimensions {
		value, err := dimensionValue(profile, plan, dim)
		if err != nil {
			return Vector{}, err
		}
		if value == "" {
			if !schema.WildcardEligible(dim) {
				return Vector{}, rerrors.MissingRateBand(string(dim), "")
			}
			continue
		}
		v.values[i] = value
		v.set[i] = true
	}
	return v, nil
}

func dimensionValue(p ApplicantProfile, plan *rateplan.Snapshot, dim rateplan.Dimension) (string, error) {
	switch dim {
	case rateplan.DimAge:
		if p.Age <= 0 {
			return "", nil
		}
		band, ok := plan.AgeBand(p.Age)
		if !ok {
			return "", rerrors.MissingRateBand(string(dim), strconv.Itoa(p.Age))
		}
		return band.Label, nil
	case rateplan.DimSex:
		return rateplan.NormalizeValue(dim, p.Sex), nil
	case rateplan.DimState:
		return rateplan.NormalizeValue(dim, p.State), nil
	case rateplan.DimTobacco:
		if p.Tobacco == nil {
			return "", nil
		}
		if *p.Tobacco {
			return rateplan.TobaccoUser, nil
		}
		return rateplan.TobaccoNonUser, nil
	case rateplan.DimOccupationClass:
		return rateplan.NormalizeValue(dim, p.OccupationClass), nil
	case rateplan.DimUnderwritingClass:
		return rateplan.NormalizeValue(dim, p.UnderwritingClass), nil
	default:
		return "", rerrors.Internal(fmt.Sprintf("no profile attribute for dimension %s", dim), nil)
	}
}
