package rating

import (
	"testing"

	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

func keyStrings(keys []rateplan.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func TestCandidatesOrder(t *testing.T) {
	ltd, _ := rateplan.SchemaFor(rateplan.DisabilityLTD)
	ltc, _ := rateplan.SchemaFor(rateplan.LongTermCare)

	full := func(dims []rateplan.Dimension, values ...string) Vector {
		v := Vector{dims: dims, values: values, set: make([]bool, len(values))}
		for i, val := range values {
			v.set[i] = val != ""
		}
		return v
	}

	tests := []struct {
		name   string
		schema *rateplan.ProductSchema
		vector Vector
		want   []string
	}{
		{
			name:   "disability opens underwriting class before state",
			schema: ltd,
			vector: full(ltd.Dimensions, "50", "M", "TX", "4A", "standard"),
			want: []string{
				"50|M|TX|4A|standard",
				"50|M|TX|4A|*",
				"50|M|*|4A|standard",
				"50|M|*|4A|*",
			},
		},
		{
			name:   "long-term care opens state before underwriting class",
			schema: ltc,
			vector: full(ltc.Dimensions, "62", "F", "OH", "select"),
			want: []string{
				"62|F|OH|select",
				"62|F|*|select",
				"62|F|OH|*",
				"62|F|*|*",
			},
		},
		{
			name:   "unset positions are always open",
			schema: ltd,
			vector: full(ltd.Dimensions, "50", "M", "TX", "4A", ""),
			want: []string{
				"50|M|TX|4A|*",
				"50|M|*|4A|*",
			},
		},
		{
			name:   "nothing set that can be opened",
			schema: ltd,
			vector: full(ltd.Dimensions, "50", "M", "", "4A", ""),
			want:   []string{"50|M|*|4A|*"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keyStrings(Candidates(tt.schema, tt.vector))
			if len(got) != len(tt.want) {
				t.Fatalf("Candidates() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidate %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLookupFallback(t *testing.T) {
	b := rateplan.NewBuilder(rateplan.Plan{
		ProductType:   rateplan.DisabilityLTD,
		Version:       "1",
		EffectiveFrom: asOf.AddDate(0, -1, 0),
		Active:        true,
	})
	// one carrier-wide row, one state row, one class row, one fully specific row
	b.AddEntry([]string{"50", "M", "*", "4A", "*"}, d("1.00")).
		AddEntry([]string{"50", "M", "CA", "4A", "*"}, d("2.00")).
		AddEntry([]string{"50", "M", "*", "4A", "preferred"}, d("3.00")).
		AddEntry([]string{"50", "M", "CA", "4A", "preferred"}, d("4.00")).
		AddModal(rateplan.ModeAnnual, d("1"), d("0"))
	plan, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		state, class string
		want         string
		candidate    int
	}{
		{state: "CA", class: "preferred", want: "4.00", candidate: 0},
		{state: "CA", class: "standard", want: "2.00", candidate: 1},
		{state: "TX", class: "preferred", want: "3.00", candidate: 2},
		{state: "TX", class: "standard", want: "1.00", candidate: 3},
		{state: "", class: "", want: "1.00", candidate: 0},
	}
	for _, tt := range tests {
		t.Run(tt.state+"/"+tt.class, func(t *testing.T) {
			v, err := BuildVector(ApplicantProfile{Age: 50, Sex: "M", State: tt.state, OccupationClass: "4A", UnderwritingClass: tt.class}, plan)
			if err != nil {
				t.Fatal(err)
			}
			m, err := Lookup(plan, v)
			if err != nil {
				t.Fatal(err)
			}
			if !m.Entry.Rate.Equal(d(tt.want)) || m.Candidate != tt.candidate {
				t.Errorf("Lookup() = %s at candidate %d, want %s at %d", m.Entry.Rate, m.Candidate, tt.want, tt.candidate)
			}
		})
	}
}

func TestLookupNeverDefaults(t *testing.T) {
	b := rateplan.NewBuilder(rateplan.Plan{
		ProductType:   rateplan.DisabilityLTD,
		Version:       "1",
		EffectiveFrom: asOf.AddDate(0, -1, 0),
		Active:        true,
	})
	b.AddEntry([]string{"50", "M", "CA", "4A", "*"}, d("2.00")).
		AddModal(rateplan.ModeAnnual, d("1"), d("0"))
	plan, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	v, err := BuildVector(ApplicantProfile{Age: 50, Sex: "M", State: "TX", OccupationClass: "4A"}, plan)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Lookup(plan, v)
	if !rerrors.IsType(err, rerrors.TypeRateNotFound) {
		t.Fatalf("Lookup() error = %v, want RateNotFound", err)
	}
	e, _ := rerrors.As(err)
	if got := e.Context["key"]; got != "age 50, sex M, state TX, occupation_class 4A, underwriting_class any" {
		t.Errorf("key context = %v", got)
	}
}
