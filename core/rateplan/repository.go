package rateplan

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/logging"
)

// Source loads plan versions from wherever they are kept
type Source interface {
	LoadPlans(ctx context.Context) ([]*Snapshot, error)
}

// Repository resolves the active plan version for a product, carrier and date.
// It only ever holds sealed snapshots; activation adds versions, nothing edits them.
type Repository struct {
	mu    sync.RWMutex
	byID  map[string]*Snapshot
	plans []*Snapshot // sorted by product, carrier, effective date
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{byID: make(map[string]*Snapshot)}
}

// Load activates every plan a source provides
func (r *Repository) Load(ctx context.Context, src Source) (int, error) {
	snaps, err := src.LoadPlans(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range snaps {
		if err := r.Activate(s); err != nil {
			return 0, err
		}
	}
	logging.Debug("plans loaded", zap.Int("count", len(snaps)))
	return len(snaps), nil
}

// Activate registers a plan version.
// Re-activating the same content is a no-op; an active version whose window overlaps
// another active version of the same product and carrier is rejected.
func (r *Repository) Activate(s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[s.ID()]; ok {
		if existing.ContentHash() == s.ContentHash() {
			return nil
		}
		return rerrors.InvalidPlan("plan %s is already registered with different content", s.ID()).
			WithContext("plan_id", s.ID())
	}

	if s.Active() {
		for _, other := range r.plans {
			if !other.Active() || other.ProductType() != s.ProductType() || other.CarrierID() != s.CarrierID() {
				continue
			}
			if other.plan.Overlaps(s.plan) {
				return rerrors.InvalidPlan("plan %s %s overlaps active version %s",
					s.ProductType(), s.Version(), other.Version()).
					WithContext("plan_id", s.ID()).
					WithContext("conflicts_with", other.ID())
			}
		}
	}

	r.byID[s.ID()] = s
	r.plans = append(r.plans, s)
	sort.SliceStable(r.plans, func(i, j int) bool {
		a, b := r.plans[i], r.plans[j]
		if a.ProductType() != b.ProductType() {
			return a.ProductType() < b.ProductType()
		}
		if a.CarrierID() != b.CarrierID() {
			return a.CarrierID() < b.CarrierID()
		}
		return a.plan.EffectiveFrom.Before(b.plan.EffectiveFrom)
	})

	logging.Info("plan activated", logging.Plan(s.ID(), s.Version(), string(s.ProductType()), s.CarrierID())...)
	return nil
}

// Resolve returns the single active plan covering asOf.
// Without a carrier id every carrier's plans are candidates, so more than one match is ambiguous.
func (r *Repository) Resolve(pt ProductType, carrierID string, asOf time.Time) (*Snapshot, error) {
	matches := r.Active(pt, asOf)
	if carrierID != "" {
		filtered := matches[:0]
		for _, s := range matches {
			if s.CarrierID() == carrierID {
				filtered = append(filtered, s)
			}
		}
		matches = filtered
	}

	date := asOf.Format(DateLayout)
	switch len(matches) {
	case 0:
		return nil, rerrors.PlanNotFound(string(pt), carrierID, date)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, s := range matches {
			ids[i] = s.ID()
		}
		return nil, rerrors.AmbiguousPlan(string(pt), date, ids)
	}
}

// Active returns every active plan of a product whose window covers asOf
func (r *Repository) Active(pt ProductType, asOf time.Time) []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Snapshot
	for _, s := range r.plans {
		if s.ProductType() == pt && s.Active() && s.Covers(asOf) {
			out = append(out, s)
		}
	}
	return out
}

// Get returns any registered version, active or not
func (r *Repository) Get(id string) (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Versions lists every version of a product and carrier in effective-date order
func (r *Repository) Versions(pt ProductType, carrierID string) []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Snapshot
	for _, s := range r.plans {
		if s.ProductType() == pt && s.CarrierID() == carrierID {
			out = append(out, s)
		}
	}
	return out
}

// All returns every registered version
func (r *Repository) All() []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Snapshot, len(r.plans))
	copy(out, r.plans)
	return out
}

// Len returns the number of registered versions
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plans)
}
