// Package determinism provides primitives for guaranteeing deterministic execution.
// Plan hashing, quote fingerprints and currency rounding all go through here.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimal places a currency amount is rounded to
const CurrencyPlaces = 2

// RoundCurrency rounds half away from zero to currency precision.
// Only call this on values that leave the engine.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// FormatCurrency renders d at currency precision
func FormatCurrency(d decimal.Decimal) string {
	return d.StringFixed(CurrencyPlaces)
}

// StableID is a hash-based unique identifier that's deterministic
type StableID string

// IDGenerator generates stable, deterministic IDs
type IDGenerator struct {
	namespace string
}

// NewIDGenerator creates an ID generator with a namespace
func NewIDGenerator(namespace string) *IDGenerator {
	return &IDGenerator{namespace: namespace}
}

// Generate creates a stable ID from inputs
func (g *IDGenerator) Generate(parts ...string) StableID {
	h := sha256.New()
	h.Write([]byte(g.namespace))
	h.Write([]byte{0})
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return StableID(hex.EncodeToString(h.Sum(nil))[:16])
}

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// IsZero reports whether the hash was never computed
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}

// ParseContentHash parses a hex-encoded hash
func ParseContentHash(s string) (ContentHash, error) {
	var h ContentHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("content hash must be %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Hasher accumulates separated fields into a ContentHash
type Hasher struct {
	h hash.Hash
}

// NewHasher creates an empty hasher
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Field writes one field followed by a separator so ("ab","c") != ("a","bc")
func (x *Hasher) Field(parts ...string) *Hasher {
	for _, p := range parts {
		x.h.Write([]byte(p))
		x.h.Write([]byte{0})
	}
	return x
}

// Decimal writes a decimal in canonical form
func (x *Hasher) Decimal(d decimal.Decimal) *Hasher {
	return x.Field(d.String())
}

// Sum returns the accumulated hash
func (x *Hasher) Sum() ContentHash {
	var out ContentHash
	copy(out[:], x.h.Sum(nil))
	return out
}

// SortedKeys returns the keys of m in sorted order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortSlice sorts a slice in a stable, deterministic manner
func SortSlice[T any](slice []T, less func(a, b T) bool) {
	sort.SliceStable(slice, func(i, j int) bool {
		return less(slice[i], slice[j])
	})
}
