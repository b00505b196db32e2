package rateplan

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	rerrors "premium-rating/internal/errors"
)

// DateLayout is the plan window date format
const DateLayout = "2006-01-02"

// Snapshot is IMMUTABLE after Build.
// It is safe to share across goroutines; every accessor returns copies or values.
type Snapshot struct {
	plan   Plan
	schema *ProductSchema

	entries []RateEntry // sorted by key
	index   map[Key]int
	bands   []AgeBand // sorted by Lo

	factors map[string]*FactorGroup
	codes   []string // factor groups in application order

	riders     []RateRider // sorted by sequence, then code
	riderIndex map[string]int

	fees     []RateFee // sorted by sequence, then code
	feeIndex map[string]int

	modal map[PaymentMode]RateModalFactor

	hash determinism.ContentHash
}

// FactorGroup is the set of mutually exclusive options for one factor code
type FactorGroup struct {
	Code    string
	options map[string]RateFactor
	order   []string
}

// Option returns the row for an option value
func (g *FactorGroup) Option(value string) (RateFactor, bool) {
	f, ok := g.options[value]
	return f, ok
}

// Options returns the configured option values in sorted order
func (g *FactorGroup) Options() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Plan returns the plan header
func (s *Snapshot) Plan() Plan {
	p := s.plan
	if s.plan.Metadata != nil {
		p.Metadata = make(map[string]string, len(s.plan.Metadata))
		for k, v := range s.plan.Metadata {
			p.Metadata[k] = v
		}
	}
	if s.plan.ExpiresOn != nil {
		exp := *s.plan.ExpiresOn
		p.ExpiresOn = &exp
	}
	return p
}

// ID returns the plan version id
func (s *Snapshot) ID() string { return s.plan.ID }

// Version returns the plan version label
func (s *Snapshot) Version() string { return s.plan.Version }

// ProductType returns the rated product type
func (s *Snapshot) ProductType() ProductType { return s.plan.ProductType }

// CarrierID returns the carrier, empty for generic plans
func (s *Snapshot) CarrierID() string { return s.plan.CarrierID }

// Active reports whether the version is active
func (s *Snapshot) Active() bool { return s.plan.Active }

// Covers reports whether the version's window covers asOf
func (s *Snapshot) Covers(asOf time.Time) bool { return s.plan.Covers(asOf) }

// Schema returns the product schema the plan is keyed by
func (s *Snapshot) Schema() *ProductSchema { return s.schema }

// ContentHash returns the hash of the plan and all of its rows
func (s *Snapshot) ContentHash() determinism.ContentHash { return s.hash }

// Entry looks up a base rate by exact key
func (s *Snapshot) Entry(k Key) (RateEntry, bool) {
	i, ok := s.index[k]
	if !ok {
		return RateEntry{}, false
	}
	return s.entries[i], true
}

// Entries returns all rate entries in key order
func (s *Snapshot) Entries() []RateEntry {
	out := make([]RateEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// AgeBand returns the filed band containing age
func (s *Snapshot) AgeBand(age int) (AgeBand, bool) {
	for _, b := range s.bands {
		if b.Contains(age) {
			return b, true
		}
	}
	return AgeBand{}, false
}

// AgeBands returns the filed age bands in ascending order
func (s *Snapshot) AgeBands() []AgeBand {
	out := make([]AgeBand, len(s.bands))
	copy(out, s.bands)
	return out
}

// FactorCodes returns the plan's factor groups in application order
func (s *Snapshot) FactorCodes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

// Factor returns a factor group
func (s *Snapshot) Factor(code string) (*FactorGroup, bool) {
	g, ok := s.factors[code]
	return g, ok
}

// Riders returns riders in application order
func (s *Snapshot) Riders() []RateRider {
	out := make([]RateRider, len(s.riders))
	copy(out, s.riders)
	return out
}

// Rider returns a rider by code
func (s *Snapshot) Rider(code string) (RateRider, bool) {
	i, ok := s.riderIndex[code]
	if !ok {
		return RateRider{}, false
	}
	return s.riders[i], true
}

// Fees returns fees and credits in application order
func (s *Snapshot) Fees() []RateFee {
	out := make([]RateFee, len(s.fees))
	copy(out, s.fees)
	return out
}

// Fee returns a fee by code
func (s *Snapshot) Fee(code string) (RateFee, bool) {
	i, ok := s.feeIndex[code]
	if !ok {
		return RateFee{}, false
	}
	return s.fees[i], true
}

// Modal returns the modal factor row for a payment mode
func (s *Snapshot) Modal(mode PaymentMode) (RateModalFactor, bool) {
	m, ok := s.modal[mode]
	return m, ok
}

// Modes returns the offered payment modes, annual first
func (s *Snapshot) Modes() []PaymentMode {
	out := make([]PaymentMode, 0, len(s.modal))
	for m := range s.modal {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Installments() < out[j].Installments() })
	return out
}

// Builder builds a plan snapshot. Problems are collected and reported by Build.
type Builder struct {
	plan     Plan
	entries  []RateEntry
	factors  []RateFactor
	riders   []RateRider
	fees     []RateFee
	modal    []RateModalFactor
	problems []string
}

// NewBuilder creates a builder for a plan header
func NewBuilder(plan Plan) *Builder {
	return &Builder{plan: plan}
}

func (b *Builder) problem(format string, args ...interface{}) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

// AddEntry adds a base rate; "*" marks a wildcard position
func (b *Builder) AddEntry(key []string, rate decimal.Decimal) *Builder {
	if len(key) > MaxDimensions {
		b.problem("entry %v: arity %d exceeds %d", key, len(key), MaxDimensions)
		return b
	}
	cells := make([]Cell, len(key))
	for i, part := range key {
		if part == Wildcard {
			cells[i] = Any
		} else {
			cells[i] = Concrete(part)
		}
	}
	b.entries = append(b.entries, RateEntry{Key: NewKey(cells...), Rate: rate})
	return b
}

// AddFactor adds one option row of a factor group
func (b *Builder) AddFactor(code, option, mode string, value decimal.Decimal) *Builder {
	adj, err := NewAdjustment(mode, value)
	if err != nil {
		b.problem("factor %s/%s: %v", code, option, err)
		return b
	}
	b.factors = append(b.factors, RateFactor{Code: code, Option: option, Adjustment: adj})
	return b
}

// AddRider adds a rider
func (b *Builder) AddRider(code, name, mode string, value decimal.Decimal, isDefault bool, sequence int) *Builder {
	adj, err := NewAdjustment(mode, value)
	if err != nil {
		b.problem("rider %s: %v", code, err)
		return b
	}
	b.riders = append(b.riders, RateRider{
		Code:       code,
		Name:       name,
		Adjustment: adj,
		IsDefault:  isDefault,
		Sequence:   sequence,
	})
	return b
}

// AddFee adds a fee or credit
func (b *Builder) AddFee(fee RateFee) *Builder {
	b.fees = append(b.fees, fee)
	return b
}

// AddModal adds a payment-mode conversion row
func (b *Builder) AddModal(mode PaymentMode, factor, flatFee decimal.Decimal) *Builder {
	b.modal = append(b.modal, RateModalFactor{Mode: mode, Factor: factor, FlatFee: flatFee})
	return b
}

// Build validates the rows and seals an immutable snapshot
func (b *Builder) Build() (*Snapshot, error) {
	schema, ok := SchemaFor(b.plan.ProductType)
	if !ok {
		return nil, rerrors.InvalidPlan("unknown product type %q", b.plan.ProductType)
	}
	if b.plan.Version == "" {
		b.problem("plan version is required")
	}
	if b.plan.EffectiveFrom.IsZero() {
		b.problem("plan effective date is required")
	}
	if b.plan.ExpiresOn != nil && !b.plan.EffectiveFrom.Before(*b.plan.ExpiresOn) {
		b.problem("plan expires on %s before it takes effect", b.plan.ExpiresOn.Format(DateLayout))
	}

	snap := &Snapshot{
		plan:       b.plan,
		schema:     schema,
		index:      make(map[Key]int, len(b.entries)),
		factors:    make(map[string]*FactorGroup),
		riderIndex: make(map[string]int),
		feeIndex:   make(map[string]int),
		modal:      make(map[PaymentMode]RateModalFactor),
	}
	if b.plan.Metadata != nil {
		snap.plan.Metadata = make(map[string]string, len(b.plan.Metadata))
		for k, v := range b.plan.Metadata {
			snap.plan.Metadata[k] = v
		}
	}

	b.buildEntries(snap)
	b.buildFactors(snap)
	b.buildRiders(snap)
	b.buildFees(snap)
	b.buildModal(snap)

	if len(b.problems) > 0 {
		return nil, rerrors.InvalidPlan("plan %s %s has %d problem(s): %s",
			b.plan.ProductType, b.plan.Version, len(b.problems), b.problems[0]).
			WithContext("problems", b.problems)
	}

	snap.hash = snap.computeHash()
	if snap.plan.ID == "" {
		snap.plan.ID = string(determinism.NewIDGenerator("plan").Generate(
			string(snap.plan.ProductType), snap.plan.CarrierID, snap.plan.Version, snap.hash.Hex()))
	}
	return snap, nil
}

func (b *Builder) buildEntries(snap *Snapshot) {
	schema := snap.schema
	if len(b.entries) == 0 {
		b.problem("plan has no rate entries")
	}
	agePos := schema.Position(DimAge)
	bandSeen := make(map[string]bool)

	for _, e := range b.entries {
		if e.Key.Len() != schema.Arity() {
			b.problem("entry %s: arity %d, %s rates on %d dimensions", e.Key, e.Key.Len(), schema.ProductType, schema.Arity())
			continue
		}
		cells := make([]Cell, e.Key.Len())
		for i, dim := range schema.Dimensions {
			c := e.Key.At(i)
			if c.Wild && !schema.WildcardEligible(dim) {
				b.problem("entry %s: %s may not be wildcarded", e.Key, dim)
			}
			if !c.Wild {
				c = Concrete(NormalizeValue(dim, c.Value))
			}
			cells[i] = c
		}
		e.Key = NewKey(cells...)
		if !e.Rate.IsPositive() {
			b.problem("entry %s: rate %s must be positive", e.Key, e.Rate)
		}
		if _, dup := snap.index[e.Key]; dup {
			b.problem("entry %s: duplicate key", e.Key)
			continue
		}
		snap.index[e.Key] = len(snap.entries)
		snap.entries = append(snap.entries, e)

		if agePos >= 0 {
			label := e.Key.At(agePos).Value
			if !bandSeen[label] {
				bandSeen[label] = true
				band, err := ParseAgeBand(label)
				if err != nil {
					b.problem("entry %s: %v", e.Key, err)
				} else {
					snap.bands = append(snap.bands, band)
				}
			}
		}
	}

	sort.Slice(snap.entries, func(i, j int) bool {
		return snap.entries[i].Key.String() < snap.entries[j].Key.String()
	})
	for i, e := range snap.entries {
		snap.index[e.Key] = i
	}

	sort.Slice(snap.bands, func(i, j int) bool { return snap.bands[i].Lo < snap.bands[j].Lo })
	for i := 1; i < len(snap.bands); i++ {
		if snap.bands[i].Lo <= snap.bands[i-1].Hi {
			b.problem("age bands %s and %s overlap", snap.bands[i-1].Label, snap.bands[i].Label)
		}
	}
}

func (b *Builder) buildFactors(snap *Snapshot) {
	for _, f := range b.factors {
		if snap.schema.FactorRank(f.Code) < 0 {
			b.problem("factor %s is not rated for %s", f.Code, snap.schema.ProductType)
			continue
		}
		g, ok := snap.factors[f.Code]
		if !ok {
			g = &FactorGroup{Code: f.Code, options: make(map[string]RateFactor)}
			snap.factors[f.Code] = g
		}
		if err := checkAdjustment(f.Adjustment); err != nil {
			b.problem("factor %s/%s: %v", f.Code, f.Option, err)
			continue
		}
		if _, dup := g.options[f.Option]; dup {
			b.problem("factor %s: duplicate option %s", f.Code, f.Option)
			continue
		}
		g.options[f.Option] = f
		g.order = append(g.order, f.Option)
	}
	for _, g := range snap.factors {
		sort.Strings(g.order)
	}
	for _, code := range snap.schema.FactorOrder {
		if _, ok := snap.factors[code]; ok {
			snap.codes = append(snap.codes, code)
		}
	}
}

func (b *Builder) buildRiders(snap *Snapshot) {
	for _, r := range b.riders {
		if r.Code == "" {
			b.problem("rider without code")
			continue
		}
		if err := checkAdjustment(r.Adjustment); err != nil {
			b.problem("rider %s: %v", r.Code, err)
			continue
		}
		if _, dup := snap.riderIndex[r.Code]; dup {
			b.problem("rider %s: duplicate code", r.Code)
			continue
		}
		snap.riderIndex[r.Code] = len(snap.riders)
		snap.riders = append(snap.riders, r)
	}
	sort.SliceStable(snap.riders, func(i, j int) bool {
		if snap.riders[i].Sequence != snap.riders[j].Sequence {
			return snap.riders[i].Sequence < snap.riders[j].Sequence
		}
		return snap.riders[i].Code < snap.riders[j].Code
	})
	for i, r := range snap.riders {
		snap.riderIndex[r.Code] = i
	}
}

// checkAdjustment rejects values that would zero out or invert the premium
func checkAdjustment(a Adjustment) error {
	switch adj := a.(type) {
	case Multiply:
		if !adj.Factor.IsPositive() {
			return fmt.Errorf("multiply factor %s must be positive", adj.Factor)
		}
	case Percent:
		if adj.Rate.LessThanOrEqual(hundred.Neg()) {
			return fmt.Errorf("percent %s must be above -100", adj.Rate)
		}
	}
	return nil
}

func (b *Builder) buildFees(snap *Snapshot) {
	for _, f := range b.fees {
		switch {
		case f.Code == "":
			b.problem("fee without code")
			continue
		case f.Type != FeeCharge && f.Type != FeeCredit:
			b.problem("fee %s: unknown fee type %q", f.Code, f.Type)
			continue
		case f.Mode != FeeFlat && f.Mode != FeePercent:
			b.problem("fee %s: unknown apply mode %q", f.Code, f.Mode)
			continue
		case f.Value.IsNegative():
			b.problem("fee %s: negative value %s", f.Code, f.Value)
			continue
		case f.Type == FeeCredit && f.Mode == FeePercent && f.Value.GreaterThan(hundred):
			b.problem("fee %s: credit of %s%% exceeds the premium", f.Code, f.Value)
			continue
		}
		if _, dup := snap.feeIndex[f.Code]; dup {
			b.problem("fee %s: duplicate code", f.Code)
			continue
		}
		snap.feeIndex[f.Code] = len(snap.fees)
		snap.fees = append(snap.fees, f)
	}
	sort.SliceStable(snap.fees, func(i, j int) bool {
		if snap.fees[i].Sequence != snap.fees[j].Sequence {
			return snap.fees[i].Sequence < snap.fees[j].Sequence
		}
		return snap.fees[i].Code < snap.fees[j].Code
	})
	for i, f := range snap.fees {
		snap.feeIndex[f.Code] = i
	}
}

func (b *Builder) buildModal(snap *Snapshot) {
	if len(b.modal) == 0 {
		b.problem("plan has no modal factors")
	}
	for _, m := range b.modal {
		if m.Mode.Installments() == 0 {
			b.problem("modal factor for unknown payment mode %q", m.Mode)
			continue
		}
		if _, dup := snap.modal[m.Mode]; dup {
			b.problem("modal factor %s: duplicate mode", m.Mode)
			continue
		}
		if !m.Factor.IsPositive() || m.FlatFee.IsNegative() {
			b.problem("modal factor %s: factor must be positive and flat fee non-negative", m.Mode)
			continue
		}
		snap.modal[m.Mode] = m
	}
}

// computeHash creates a content hash of the plan and all child rows
func (s *Snapshot) computeHash() determinism.ContentHash {
	h := determinism.NewHasher()
	h.Field("plan", string(s.plan.ProductType), s.plan.CarrierID, s.plan.Version,
		s.plan.EffectiveFrom.Format(DateLayout), strconv.FormatBool(s.plan.Active))
	if s.plan.ExpiresOn != nil {
		h.Field("expires", s.plan.ExpiresOn.Format(DateLayout))
	}
	for _, k := range determinism.SortedKeys(s.plan.Metadata) {
		h.Field("meta", k, s.plan.Metadata[k])
	}
	for _, e := range s.entries {
		h.Field("entry", e.Key.String()).Decimal(e.Rate)
	}
	for _, code := range s.codes {
		g := s.factors[code]
		for _, opt := range g.order {
			f := g.options[opt]
			h.Field("factor", code, opt, f.Adjustment.Mode()).Decimal(f.Adjustment.Value())
		}
	}
	for _, r := range s.riders {
		h.Field("rider", r.Code, r.Name, r.Adjustment.Mode(), strconv.FormatBool(r.IsDefault), strconv.Itoa(r.Sequence)).
			Decimal(r.Adjustment.Value())
	}
	for _, f := range s.fees {
		h.Field("fee", f.Code, f.Name, string(f.Type), string(f.Mode), strconv.FormatBool(f.Mandatory), strconv.Itoa(f.Sequence)).
			Decimal(f.Value)
	}
	for _, m := range s.Modes() {
		row := s.modal[m]
		h.Field("modal", string(m)).Decimal(row.Factor).Decimal(row.FlatFee)
	}
	return h.Sum()
}

// Verify checks content hash integrity
func (s *Snapshot) Verify() bool {
	return s.computeHash() == s.hash
}
