package rateplan

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Adjustment is the closed set of ways a factor or rider changes a running premium.
// Implementations are Multiply, Add and Percent; the unexported method keeps the set closed.
type Adjustment interface {
	// Mode returns the apply-mode name used in plan documents
	Mode() string

	// Value returns the configured factor value
	Value() decimal.Decimal

	// Apply returns the premium after the adjustment
	Apply(premium, exposureUnits decimal.Decimal) decimal.Decimal

	adjustment()
}

// Multiply scales the running premium
type Multiply struct {
	Factor decimal.Decimal
}

func (Multiply) Mode() string             { return "multiply" }
func (m Multiply) Value() decimal.Decimal { return m.Factor }
func (Multiply) adjustment()              {}

// Apply implements Adjustment
func (m Multiply) Apply(premium, _ decimal.Decimal) decimal.Decimal {
	return premium.Mul(m.Factor)
}

// Add layers a flat per-unit amount onto the running premium
type Add struct {
	PerUnit decimal.Decimal
}

func (Add) Mode() string             { return "add" }
func (a Add) Value() decimal.Decimal { return a.PerUnit }
func (Add) adjustment()              {}

// Apply implements Adjustment
func (a Add) Apply(premium, exposureUnits decimal.Decimal) decimal.Decimal {
	return premium.Add(a.PerUnit.Mul(exposureUnits))
}

// Percent loads the running premium by a percentage
type Percent struct {
	Rate decimal.Decimal
}

func (Percent) Mode() string             { return "percent" }
func (p Percent) Value() decimal.Decimal { return p.Rate }
func (Percent) adjustment()              {}

// Apply implements Adjustment
func (p Percent) Apply(premium, _ decimal.Decimal) decimal.Decimal {
	return premium.Mul(one.Add(p.Rate.Div(hundred)))
}

// NewAdjustment builds the adjustment for a document apply-mode name
func NewAdjustment(mode string, value decimal.Decimal) (Adjustment, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "multiply":
		return Multiply{Factor: value}, nil
	case "add":
		return Add{PerUnit: value}, nil
	case "percent":
		return Percent{Rate: value}, nil
	default:
		return nil, fmt.Errorf("unknown apply mode %q", mode)
	}
}
