package rateplan

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"premium-rating/core/determinism"
	rerrors "premium-rating/internal/errors"
)

// Document is the serialised form of a plan version.
// It is shared by plan files (HCL or JSON), the file store, the cache and the API.
// Decimal values travel as strings so no precision is lost.
type Document struct {
	ID            string            `json:"id,omitempty" hcl:"id,optional"`
	ProductType   string            `json:"product_type" hcl:"product_type"`
	CarrierID     string            `json:"carrier_id,omitempty" hcl:"carrier_id,optional"`
	Version       string            `json:"version" hcl:"version"`
	EffectiveFrom string            `json:"effective_from" hcl:"effective_from"`
	ExpiresOn     string            `json:"expires_on,omitempty" hcl:"expires_on,optional"`
	Active        bool              `json:"active" hcl:"active,optional"`
	Metadata      map[string]string `json:"metadata,omitempty" hcl:"metadata,optional"`
	ContentHash   string            `json:"content_hash,omitempty" hcl:"content_hash,optional"`

	Entries []EntryDocument  `json:"entries" hcl:"entry,block"`
	Factors []FactorDocument `json:"factors,omitempty" hcl:"factor,block"`
	Riders  []RiderDocument  `json:"riders,omitempty" hcl:"rider,block"`
	Fees    []FeeDocument    `json:"fees,omitempty" hcl:"fee,block"`
	Modal   []ModalDocument  `json:"modal" hcl:"modal,block"`
}

// EntryDocument is one base rate row
type EntryDocument struct {
	Key  []string `json:"key" hcl:"key"`
	Rate string   `json:"rate" hcl:"rate"`
}

// FactorDocument is one factor group
type FactorDocument struct {
	Code    string           `json:"code" hcl:"code,label"`
	Options []OptionDocument `json:"options" hcl:"option,block"`
}

// OptionDocument is one option row of a factor group
type OptionDocument struct {
	Value  string `json:"value" hcl:"value,label"`
	Mode   string `json:"mode" hcl:"mode"`
	Factor string `json:"factor" hcl:"factor"`
}

// RiderDocument is one rider row
type RiderDocument struct {
	Code     string `json:"code" hcl:"code,label"`
	Name     string `json:"name,omitempty" hcl:"name,optional"`
	Mode     string `json:"mode" hcl:"mode"`
	Factor   string `json:"factor" hcl:"factor"`
	Default  bool   `json:"default,omitempty" hcl:"default,optional"`
	Sequence int    `json:"sequence,omitempty" hcl:"sequence,optional"`
}

// FeeDocument is one fee or credit row
type FeeDocument struct {
	Code      string `json:"code" hcl:"code,label"`
	Name      string `json:"name,omitempty" hcl:"name,optional"`
	Type      string `json:"type" hcl:"type"`
	Mode      string `json:"mode" hcl:"mode"`
	Amount    string `json:"amount" hcl:"amount"`
	Mandatory bool   `json:"mandatory,omitempty" hcl:"mandatory,optional"`
	Sequence  int    `json:"sequence,omitempty" hcl:"sequence,optional"`
}

// ModalDocument is one payment-mode row
type ModalDocument struct {
	Mode    string `json:"mode" hcl:"mode,label"`
	Factor  string `json:"factor" hcl:"factor"`
	FlatFee string `json:"flat_fee,omitempty" hcl:"flat_fee,optional"`
}

// ToDocument serialises a snapshot
func ToDocument(s *Snapshot) *Document {
	doc := &Document{
		ID:            s.plan.ID,
		ProductType:   string(s.plan.ProductType),
		CarrierID:     s.plan.CarrierID,
		Version:       s.plan.Version,
		EffectiveFrom: s.plan.EffectiveFrom.Format(DateLayout),
		Active:        s.plan.Active,
		Metadata:      s.Plan().Metadata,
		ContentHash:   s.hash.Hex(),
	}
	if s.plan.ExpiresOn != nil {
		doc.ExpiresOn = s.plan.ExpiresOn.Format(DateLayout)
	}

	for _, e := range s.entries {
		doc.Entries = append(doc.Entries, EntryDocument{Key: e.Key.Strings(), Rate: e.Rate.String()})
	}
	for _, code := range s.codes {
		g := s.factors[code]
		fd := FactorDocument{Code: code}
		for _, opt := range g.order {
			f := g.options[opt]
			fd.Options = append(fd.Options, OptionDocument{
				Value:  opt,
				Mode:   f.Adjustment.Mode(),
				Factor: f.Adjustment.Value().String(),
			})
		}
		doc.Factors = append(doc.Factors, fd)
	}
	for _, r := range s.riders {
		doc.Riders = append(doc.Riders, RiderDocument{
			Code:     r.Code,
			Name:     r.Name,
			Mode:     r.Adjustment.Mode(),
			Factor:   r.Adjustment.Value().String(),
			Default:  r.IsDefault,
			Sequence: r.Sequence,
		})
	}
	for _, f := range s.fees {
		doc.Fees = append(doc.Fees, FeeDocument{
			Code:      f.Code,
			Name:      f.Name,
			Type:      string(f.Type),
			Mode:      string(f.Mode),
			Amount:    f.Value.String(),
			Mandatory: f.Mandatory,
			Sequence:  f.Sequence,
		})
	}
	for _, m := range s.Modes() {
		row := s.modal[m]
		doc.Modal = append(doc.Modal, ModalDocument{
			Mode:    string(m),
			Factor:  row.Factor.String(),
			FlatFee: row.FlatFee.String(),
		})
	}
	return doc
}

// FromDocument builds a snapshot from its serialised form.
// A document carrying a content hash must hash to the same value once rebuilt.
func FromDocument(doc *Document) (*Snapshot, error) {
	var problems []string
	bad := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	parse := func(what, s string, required bool) decimal.Decimal {
		s = strings.TrimSpace(s)
		if s == "" {
			if required {
				bad("%s: value is required", what)
			}
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			bad("%s: invalid decimal %q", what, s)
		}
		return d
	}
	dec := func(what, s string) decimal.Decimal { return parse(what, s, true) }

	plan := Plan{
		ID:          doc.ID,
		ProductType: ProductType(doc.ProductType),
		CarrierID:   doc.CarrierID,
		Version:     doc.Version,
		Active:      doc.Active,
		Metadata:    doc.Metadata,
	}
	if from, err := time.Parse(DateLayout, doc.EffectiveFrom); err != nil {
		bad("effective_from: %v", err)
	} else {
		plan.EffectiveFrom = from
	}
	if doc.ExpiresOn != "" {
		if exp, err := time.Parse(DateLayout, doc.ExpiresOn); err != nil {
			bad("expires_on: %v", err)
		} else {
			plan.ExpiresOn = &exp
		}
	}

	b := NewBuilder(plan)
	for i, e := range doc.Entries {
		b.AddEntry(e.Key, dec(fmt.Sprintf("entry %d", i), e.Rate))
	}
	for _, f := range doc.Factors {
		for _, o := range f.Options {
			b.AddFactor(f.Code, o.Value, o.Mode, dec("factor "+f.Code+"/"+o.Value, o.Factor))
		}
	}
	for _, r := range doc.Riders {
		b.AddRider(r.Code, r.Name, r.Mode, dec("rider "+r.Code, r.Factor), r.Default, r.Sequence)
	}
	for _, f := range doc.Fees {
		b.AddFee(RateFee{
			Code:      f.Code,
			Name:      f.Name,
			Type:      FeeType(strings.ToLower(f.Type)),
			Mode:      FeeMode(strings.ToLower(f.Mode)),
			Value:     dec("fee "+f.Code, f.Amount),
			Mandatory: f.Mandatory,
			Sequence:  f.Sequence,
		})
	}
	for _, m := range doc.Modal {
		mode, err := ParsePaymentMode(m.Mode)
		if err != nil {
			bad("modal: %v", err)
			continue
		}
		b.AddModal(mode, dec("modal "+m.Mode, m.Factor), parse("modal "+m.Mode+" flat fee", m.FlatFee, false))
	}

	if len(problems) > 0 {
		return nil, rerrors.InvalidPlan("plan document %s %s: %s", doc.ProductType, doc.Version, problems[0]).
			WithContext("problems", problems)
	}

	snap, err := b.Build()
	if err != nil {
		return nil, err
	}

	if doc.ContentHash != "" {
		want, err := determinism.ParseContentHash(doc.ContentHash)
		if err != nil {
			return nil, rerrors.Wrap(rerrors.TypeInvalidPlan, "plan document content hash", err)
		}
		if want != snap.hash {
			return nil, rerrors.InvalidPlan("plan %s content hash mismatch: document %s, rebuilt %s",
				snap.plan.ID, want.String(), snap.hash.String())
		}
	}
	return snap, nil
}
