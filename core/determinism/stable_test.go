package determinism

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"144.7875", "144.79"},
		{"26.41890625", "26.42"},
		{"0.005", "0.01"},
		{"-0.005", "-0.01"},
		{"10", "10.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := FormatCurrency(RoundCurrency(decimal.RequireFromString(tt.in)))
			if got != tt.want {
				t.Errorf("RoundCurrency(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasherSeparatesFields(t *testing.T) {
	a := NewHasher().Field("ab", "c").Sum()
	b := NewHasher().Field("a", "bc").Sum()
	if a == b {
		t.Fatal("field boundaries must change the hash")
	}

	again := NewHasher().Field("ab", "c").Sum()
	if a != again {
		t.Fatal("hash is not deterministic")
	}
}

func TestParseContentHashRoundTrip(t *testing.T) {
	h := ComputeHash([]byte("rate plan"))
	parsed, err := ParseContentHash(h.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != h {
		t.Errorf("parsed hash %s != %s", parsed.Hex(), h.Hex())
	}

	if _, err := ParseContentHash("abcd"); err == nil {
		t.Error("expected error for short hash")
	}
}

func TestIDGeneratorStable(t *testing.T) {
	g := NewIDGenerator("plan")
	if g.Generate("x", "y") != g.Generate("x", "y") {
		t.Error("same inputs produced different ids")
	}
	if g.Generate("x", "y") == NewIDGenerator("quote").Generate("x", "y") {
		t.Error("namespace must change the id")
	}
}
