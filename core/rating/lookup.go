package rating

import (
	"math/bits"
	"sort"

	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// Match is the entry a vector resolved to
type Match struct {
	Entry rateplan.RateEntry

	// Wildcarded lists the dimensions the matching key left open
	Wildcarded []rateplan.Dimension

	// Candidate is the zero-based position of the matching key in fallback order
	Candidate int
}

// Candidates returns the keys to try for a vector, most specific first.
//
// Only wildcard-eligible positions are ever opened, and unset positions are
// always open. Keys with fewer wildcards come first; among keys with the same
// number of wildcards, the one that opens dimensions earlier in the schema's
// WildcardOrder comes first. The order is total, so at most one entry can be
// the first match.
func Candidates(schema *rateplan.ProductSchema, v Vector) []rateplan.Key {
	positions := make([]int, len(schema.WildcardOrder))
	for i, d := range schema.WildcardOrder {
		positions[i] = schema.Position(d)
	}

	var required uint
	for i, p := range positions {
		if p < 0 {
			continue
		}
		if _, set := v.Get(p); !set {
			required |= 1 << i
		}
	}

	masks := make([]uint, 0, 1<<len(positions))
	for m := uint(0); m < 1<<len(positions); m++ {
		if m&required == required {
			masks = append(masks, m)
		}
	}
	sort.Slice(masks, func(i, j int) bool {
		a, b := masks[i], masks[j]
		if ca, cb := bits.OnesCount(a), bits.OnesCount(b); ca != cb {
			return ca < cb
		}
		// lowest differing bit decides: the dimension earlier in WildcardOrder opens first
		diff := a ^ b
		low := diff & -diff
		return a&low != 0
	})

	base := v.Key()
	keys := make([]rateplan.Key, len(masks))
	for i, m := range masks {
		k := base
		for bit, p := range positions {
			if p >= 0 && m&(1<<bit) != 0 {
				k = k.With(p, rateplan.Any)
			}
		}
		keys[i] = k
	}
	return keys
}

// Lookup finds the base rate for a vector, degrading to wildcard entries
// in Candidates order. It never defaults a missing rate.
func Lookup(plan *rateplan.Snapshot, v Vector) (Match, error) {
	candidates := Candidates(plan.Schema(), v)
	for i, k := range candidates {
		entry, ok := plan.Entry(k)
		if !ok {
			continue
		}
		m := Match{Entry: entry, Candidate: i}
		for p := 0; p < k.Len(); p++ {
			if k.At(p).Wild {
				m.Wildcarded = append(m.Wildcarded, v.Dimension(p))
			}
		}
		return m, nil
	}
	return Match{}, rerrors.RateNotFound(v.String()).
		WithContext("plan_id", plan.ID()).
		WithContext("candidates", len(candidates))
}
