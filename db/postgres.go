// Package db keeps plan versions in PostgreSQL.
// Plans are written once; a new rate filing is a new plan row.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"premium-rating/core/rateplan"
	"premium-rating/internal/config"
	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/logging"
)

// Open connects to PostgreSQL through the lib/pq driver
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, rerrors.Config("connecting to postgres", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	return db, nil
}

type planRow struct {
	ID            string     `db:"id"`
	ProductType   string     `db:"product_type"`
	CarrierID     string     `db:"carrier_id"`
	Version       string     `db:"version"`
	EffectiveFrom time.Time  `db:"effective_from"`
	ExpiresOn     *time.Time `db:"expires_on"`
	Active        bool       `db:"active"`
	Metadata      []byte     `db:"metadata"`
	ContentHash   string     `db:"content_hash"`
}

type entryRow struct {
	PlanID   string         `db:"plan_id"`
	Position int            `db:"position"`
	DimKey   pq.StringArray `db:"dim_key"`
	Rate     string         `db:"rate"`
}

type factorRow struct {
	PlanID   string `db:"plan_id"`
	Code     string `db:"code"`
	Option   string `db:"option"`
	Position int    `db:"position"`
	Mode     string `db:"mode"`
	Value    string `db:"value"`
}

type riderRow struct {
	PlanID    string `db:"plan_id"`
	Code      string `db:"code"`
	Name      string `db:"name"`
	Mode      string `db:"mode"`
	Value     string `db:"value"`
	IsDefault bool   `db:"is_default"`
	Sequence  int    `db:"sequence"`
}

type feeRow struct {
	PlanID    string `db:"plan_id"`
	Code      string `db:"code"`
	Name      string `db:"name"`
	FeeType   string `db:"fee_type"`
	Mode      string `db:"mode"`
	Amount    string `db:"amount"`
	Mandatory bool   `db:"mandatory"`
	Sequence  int    `db:"sequence"`
}

type modalRow struct {
	PlanID  string `db:"plan_id"`
	Mode    string `db:"mode"`
	Factor  string `db:"factor"`
	FlatFee string `db:"flat_fee"`
}

// tables holds every row of a load, grouped later into documents
type tables struct {
	plans   []planRow
	entries []entryRow
	factors []factorRow
	riders  []riderRow
	fees    []feeRow
	modal   []modalRow
}

// PlanStore reads and writes plan versions
type PlanStore struct {
	db *sqlx.DB
}

// NewPlanStore creates a store over an open connection pool
func NewPlanStore(db *sqlx.DB) *PlanStore {
	return &PlanStore{db: db}
}

// LoadPlans implements rateplan.Source
func (s *PlanStore) LoadPlans(ctx context.Context) ([]*rateplan.Snapshot, error) {
	var t tables
	queries := []struct {
		dest  interface{}
		query string
	}{
		{&t.plans, `SELECT id, product_type, carrier_id, version, effective_from, expires_on, active, metadata, content_hash
			FROM rate_plans ORDER BY product_type, carrier_id, effective_from, id`},
		{&t.entries, `SELECT plan_id, position, dim_key, rate::text AS rate FROM rate_entries ORDER BY plan_id, position`},
		{&t.factors, `SELECT plan_id, code, option, position, mode, value::text AS value FROM rate_factors ORDER BY plan_id, code, position`},
		{&t.riders, `SELECT plan_id, code, name, mode, value::text AS value, is_default, sequence FROM rate_riders ORDER BY plan_id, sequence, code`},
		{&t.fees, `SELECT plan_id, code, name, fee_type, mode, amount::text AS amount, mandatory, sequence FROM rate_fees ORDER BY plan_id, sequence, code`},
		{&t.modal, `SELECT plan_id, mode, factor::text AS factor, flat_fee::text AS flat_fee FROM rate_modal_factors ORDER BY plan_id, mode`},
	}
	for _, q := range queries {
		if err := s.db.SelectContext(ctx, q.dest, q.query); err != nil {
			return nil, rerrors.Internal("planStore.LoadPlans", err)
		}
	}

	docs, err := t.documents()
	if err != nil {
		return nil, err
	}
	out := make([]*rateplan.Snapshot, 0, len(docs))
	for i := range docs {
		snap, err := rateplan.FromDocument(&docs[i])
		if err != nil {
			if e, ok := rerrors.As(err); ok {
				return nil, e.WithContext("plan_id", docs[i].ID)
			}
			return nil, err
		}
		out = append(out, snap)
	}
	logging.Debug("plans loaded from postgres", zap.Int("plans", len(out)))
	return out, nil
}

// documents groups child rows under their plan
func (t *tables) documents() ([]rateplan.Document, error) {
	docs := make([]rateplan.Document, len(t.plans))
	byID := make(map[string]*rateplan.Document, len(t.plans))
	for i, p := range t.plans {
		doc := rateplan.Document{
			ID:            p.ID,
			ProductType:   p.ProductType,
			CarrierID:     p.CarrierID,
			Version:       p.Version,
			EffectiveFrom: p.EffectiveFrom.Format(rateplan.DateLayout),
			Active:        p.Active,
			ContentHash:   p.ContentHash,
		}
		if p.ExpiresOn != nil {
			doc.ExpiresOn = p.ExpiresOn.Format(rateplan.DateLayout)
		}
		if len(p.Metadata) > 0 {
			if err := json.Unmarshal(p.Metadata, &doc.Metadata); err != nil {
				return nil, rerrors.Wrapf(rerrors.TypeInvalidPlan, err, "plan %s metadata", p.ID)
			}
			if len(doc.Metadata) == 0 {
				doc.Metadata = nil
			}
		}
		docs[i] = doc
		byID[p.ID] = &docs[i]
	}

	owner := func(table, planID string) (*rateplan.Document, error) {
		doc, ok := byID[planID]
		if !ok {
			return nil, rerrors.Newf(rerrors.TypeInvalidPlan, "%s row references unknown plan %s", table, planID)
		}
		return doc, nil
	}

	for _, e := range t.entries {
		doc, err := owner("rate_entries", e.PlanID)
		if err != nil {
			return nil, err
		}
		doc.Entries = append(doc.Entries, rateplan.EntryDocument{Key: []string(e.DimKey), Rate: e.Rate})
	}
	for _, f := range t.factors {
		doc, err := owner("rate_factors", f.PlanID)
		if err != nil {
			return nil, err
		}
		n := len(doc.Factors)
		if n == 0 || doc.Factors[n-1].Code != f.Code {
			doc.Factors = append(doc.Factors, rateplan.FactorDocument{Code: f.Code})
			n++
		}
		doc.Factors[n-1].Options = append(doc.Factors[n-1].Options, rateplan.OptionDocument{
			Value:  f.Option,
			Mode:   f.Mode,
			Factor: f.Value,
		})
	}
	for _, r := range t.riders {
		doc, err := owner("rate_riders", r.PlanID)
		if err != nil {
			return nil, err
		}
		doc.Riders = append(doc.Riders, rateplan.RiderDocument{
			Code:     r.Code,
			Name:     r.Name,
			Mode:     r.Mode,
			Factor:   r.Value,
			Default:  r.IsDefault,
			Sequence: r.Sequence,
		})
	}
	for _, f := range t.fees {
		doc, err := owner("rate_fees", f.PlanID)
		if err != nil {
			return nil, err
		}
		doc.Fees = append(doc.Fees, rateplan.FeeDocument{
			Code:      f.Code,
			Name:      f.Name,
			Type:      f.FeeType,
			Mode:      f.Mode,
			Amount:    f.Amount,
			Mandatory: f.Mandatory,
			Sequence:  f.Sequence,
		})
	}
	for _, m := range t.modal {
		doc, err := owner("rate_modal_factors", m.PlanID)
		if err != nil {
			return nil, err
		}
		doc.Modal = append(doc.Modal, rateplan.ModalDocument{Mode: m.Mode, Factor: m.Factor, FlatFee: m.FlatFee})
	}
	return docs, nil
}

// Save writes a plan version. Saving the same content again is a no-op;
// saving different content under an existing id is rejected.
func (s *PlanStore) Save(ctx context.Context, snap *rateplan.Snapshot) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return rerrors.Internal("planStore.Save begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing string
	err = tx.GetContext(ctx, &existing, `SELECT content_hash FROM rate_plans WHERE id = $1`, snap.ID())
	switch {
	case err == nil:
		if existing == snap.ContentHash().Hex() {
			return tx.Rollback()
		}
		return rerrors.InvalidPlan("plan %s is already stored with different content", snap.ID()).
			WithContext("stored_hash", existing).
			WithContext("content_hash", snap.ContentHash().Hex())
	case !errors.Is(err, sql.ErrNoRows):
		return rerrors.Internal("planStore.Save lookup", err)
	}

	if err = insertDocument(ctx, tx, rateplan.ToDocument(snap)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return rerrors.Internal("planStore.Save commit", err)
	}
	logging.Info("plan saved", logging.Plan(snap.ID(), snap.Version(), string(snap.ProductType()), snap.CarrierID())...)
	return nil
}

func insertDocument(ctx context.Context, tx *sqlx.Tx, doc *rateplan.Document) error {
	metadata := []byte("{}")
	if len(doc.Metadata) > 0 {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return rerrors.Internal("encode plan metadata", err)
		}
		metadata = raw
	}
	var expires interface{}
	if doc.ExpiresOn != "" {
		expires = doc.ExpiresOn
	}

	exec := func(what, query string, args ...interface{}) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return rerrors.Internal(fmt.Sprintf("planStore.Save %s", what), err)
		}
		return nil
	}

	if err := exec("plan", `INSERT INTO rate_plans
		(id, product_type, carrier_id, version, effective_from, expires_on, active, metadata, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.ProductType, doc.CarrierID, doc.Version, doc.EffectiveFrom, expires, doc.Active, metadata, doc.ContentHash,
	); err != nil {
		return err
	}
	for i, e := range doc.Entries {
		if err := exec("entry", `INSERT INTO rate_entries (plan_id, position, dim_key, rate) VALUES ($1, $2, $3, $4)`,
			doc.ID, i, pq.StringArray(e.Key), e.Rate); err != nil {
			return err
		}
	}
	for _, f := range doc.Factors {
		for i, o := range f.Options {
			if err := exec("factor", `INSERT INTO rate_factors (plan_id, code, option, position, mode, value) VALUES ($1, $2, $3, $4, $5, $6)`,
				doc.ID, f.Code, o.Value, i, o.Mode, o.Factor); err != nil {
				return err
			}
		}
	}
	for _, r := range doc.Riders {
		if err := exec("rider", `INSERT INTO rate_riders (plan_id, code, name, mode, value, is_default, sequence) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			doc.ID, r.Code, r.Name, r.Mode, r.Factor, r.Default, r.Sequence); err != nil {
			return err
		}
	}
	for _, f := range doc.Fees {
		if err := exec("fee", `INSERT INTO rate_fees (plan_id, code, name, fee_type, mode, amount, mandatory, sequence) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			doc.ID, f.Code, f.Name, f.Type, f.Mode, f.Amount, f.Mandatory, f.Sequence); err != nil {
			return err
		}
	}
	for _, m := range doc.Modal {
		flat := m.FlatFee
		if flat == "" {
			flat = "0"
		}
		if err := exec("modal", `INSERT INTO rate_modal_factors (plan_id, mode, factor, flat_fee) VALUES ($1, $2, $3, $4)`,
			doc.ID, m.Mode, m.Factor, flat); err != nil {
			return err
		}
	}
	return nil
}
