// Package rateplan holds versioned carrier rate tables.
//
// A Plan version and its child rows (entries, factors, riders, fees, modal
// factors) are assembled once by a Builder and sealed into a Snapshot. A
// Snapshot is never edited afterwards; a new filing is a new Snapshot.
package rateplan

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType identifies a rated product line
type ProductType string

const (
	DisabilityLTD ProductType = "disability_ltd"
	LifeTerm      ProductType = "life_term"
	LongTermCare  ProductType = "long_term_care"
)

// PaymentMode is a premium payment frequency
type PaymentMode string

const (
	ModeAnnual     PaymentMode = "annual"
	ModeSemiannual PaymentMode = "semiannual"
	ModeQuarterly  PaymentMode = "quarterly"
	ModeMonthly    PaymentMode = "monthly"
)

// Installments returns the number of installments per year
func (m PaymentMode) Installments() int {
	switch m {
	case ModeAnnual:
		return 1
	case ModeSemiannual:
		return 2
	case ModeQuarterly:
		return 4
	case ModeMonthly:
		return 12
	default:
		return 0
	}
}

// ParsePaymentMode validates a payment mode name
func ParsePaymentMode(s string) (PaymentMode, error) {
	m := PaymentMode(strings.ToLower(strings.TrimSpace(s)))
	if m.Installments() == 0 {
		return "", fmt.Errorf("unknown payment mode %q", s)
	}
	return m, nil
}

// Wildcard is the marker for a dimension a carrier does not rate on
const Wildcard = "*"

// MaxDimensions bounds the arity of any product schema
const MaxDimensions = 8

// Cell is one position of a dimension key
type Cell struct {
	Value string
	Wild  bool
}

// Any is the wildcard cell
var Any = Cell{Wild: true}

// Concrete returns a cell holding a categorical value
func Concrete(v string) Cell {
	return Cell{Value: v}
}

// String renders the cell as it appears in plan documents
func (c Cell) String() string {
	if c.Wild {
		return Wildcard
	}
	return c.Value
}

// Key is an ordered dimension key. It is comparable and used directly as a map key.
type Key struct {
	n     uint8
	cells [MaxDimensions]Cell
}

// NewKey builds a key from cells
func NewKey(cells ...Cell) Key {
	if len(cells) > MaxDimensions {
		panic(fmt.Sprintf("dimension key arity %d exceeds %d", len(cells), MaxDimensions))
	}
	var k Key
	k.n = uint8(len(cells))
	copy(k.cells[:], cells)
	return k
}

// Len returns the key arity
func (k Key) Len() int {
	return int(k.n)
}

// At returns the cell at position i
func (k Key) At(i int) Cell {
	return k.cells[i]
}

// With returns a copy of k with position i replaced
func (k Key) With(i int, c Cell) Key {
	k.cells[i] = c
	return k
}

// Strings returns the document form of the key
func (k Key) Strings() []string {
	out := make([]string, k.n)
	for i := range out {
		out[i] = k.cells[i].String()
	}
	return out
}

// String renders the key for messages and sorting
func (k Key) String() string {
	return strings.Join(k.Strings(), "|")
}

// Plan is the header of one carrier/product rating configuration version
type Plan struct {
	ID            string
	ProductType   ProductType
	CarrierID     string // empty for generic plans
	Version       string
	EffectiveFrom time.Time
	ExpiresOn     *time.Time // exclusive; nil means open-ended
	Active        bool
	Metadata      map[string]string
}

// Covers reports whether asOf falls inside the plan's window
func (p Plan) Covers(asOf time.Time) bool {
	if asOf.Before(p.EffectiveFrom) {
		return false
	}
	return p.ExpiresOn == nil || asOf.Before(*p.ExpiresOn)
}

// Overlaps reports whether two plan windows share any instant
func (p Plan) Overlaps(o Plan) bool {
	if p.ExpiresOn != nil && !o.EffectiveFrom.Before(*p.ExpiresOn) {
		return false
	}
	if o.ExpiresOn != nil && !p.EffectiveFrom.Before(*o.ExpiresOn) {
		return false
	}
	return true
}

// RateEntry is one base rate, per exposure unit
type RateEntry struct {
	Key  Key
	Rate decimal.Decimal
}

// RateFactor is one option row of a factor group
type RateFactor struct {
	Code       string
	Option     string
	Adjustment Adjustment
}

// RateRider is an optional or default add-on
type RateRider struct {
	Code       string
	Name       string
	Adjustment Adjustment
	IsDefault  bool
	Sequence   int
}

// FeeType is the direction of a fee row
type FeeType string

const (
	FeeCharge FeeType = "fee"
	FeeCredit FeeType = "credit"
)

// FeeMode is the mechanics of a fee row
type FeeMode string

const (
	FeeFlat    FeeMode = "add"
	FeePercent FeeMode = "percent"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// RateFee is a flat charge or percentage credit applied after riders
type RateFee struct {
	Code      string
	Name      string
	Type      FeeType
	Mode      FeeMode
	Value     decimal.Decimal
	Mandatory bool
	Sequence  int
}

// Apply returns the premium after this fee acts on it once
func (f RateFee) Apply(premium decimal.Decimal) decimal.Decimal {
	switch {
	case f.Mode == FeeFlat && f.Type == FeeCharge:
		return premium.Add(f.Value)
	case f.Mode == FeeFlat && f.Type == FeeCredit:
		return premium.Sub(f.Value)
	case f.Mode == FeePercent && f.Type == FeeCharge:
		return premium.Mul(one.Add(f.Value.Div(hundred)))
	default:
		return premium.Mul(one.Sub(f.Value.Div(hundred)))
	}
}

// RateModalFactor converts an annual premium to one installment
type RateModalFactor struct {
	Mode    PaymentMode
	Factor  decimal.Decimal
	FlatFee decimal.Decimal
}
