// Package carrier holds adapters for carriers that price through their own rating API.
// Carriers with a JSON rating API are reached through HTTP; the comparer only sees quoting.CarrierAdapter.
package carrier

import (
	"context"
	"sort"
	"sync"

	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
)

// Registry manages carrier adapters
type Registry struct {
	adapters map[string]quoting.CarrierAdapter
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]quoting.CarrierAdapter),
	}
}

// Register adds or replaces the adapter for a carrier
func (r *Registry) Register(a quoting.CarrierAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.CarrierID()] = a
}

// Get returns the adapter for a carrier
func (r *Registry) Get(carrierID string) (quoting.CarrierAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[carrierID]
	return a, ok
}

// Adapters implements quoting.AdapterSource, ordered by carrier id
func (r *Registry) Adapters() []quoting.CarrierAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]quoting.CarrierAdapter, len(ids))
	for i, id := range ids {
		out[i] = r.adapters[id]
	}
	return out
}

// QuoteFunc prices one request
type QuoteFunc func(ctx context.Context, req quoting.CarrierRequest) (*quoting.ExternalQuote, error)

// Func adapts a function to a carrier adapter
type Func struct {
	ID       string
	Products []rateplan.ProductType
	Fn       QuoteFunc
}

// CarrierID implements quoting.CarrierAdapter
func (f *Func) CarrierID() string { return f.ID }

// Supports implements quoting.CarrierAdapter; no products means all
func (f *Func) Supports(pt rateplan.ProductType) bool {
	if len(f.Products) == 0 {
		return true
	}
	for _, p := range f.Products {
		if p == pt {
			return true
		}
	}
	return false
}

// Quote implements quoting.CarrierAdapter
func (f *Func) Quote(ctx context.Context, req quoting.CarrierRequest) (*quoting.ExternalQuote, error) {
	return f.Fn(ctx, req)
}
