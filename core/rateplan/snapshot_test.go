package rateplan

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	rerrors "premium-rating/internal/errors"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ltdHeader() Plan {
	return Plan{
		ProductType:   DisabilityLTD,
		CarrierID:     "acme",
		Version:       "2026.1",
		EffectiveFrom: day("2026-01-01"),
		Active:        true,
		Metadata:      map[string]string{"filing": "TX-2026-114"},
	}
}

func ltdBuilder() *Builder {
	return NewBuilder(ltdHeader()).
		AddEntry([]string{"50", "M", "*", "4A", "*"}, dec("2.2275")).
		AddEntry([]string{"50", "F", "*", "4A", "*"}, dec("2.673")).
		AddEntry([]string{"45-49", "M", "*", "4A", "*"}, dec("1.9125")).
		AddEntry([]string{"50", "M", "CA", "4A", "*"}, dec("2.45")).
		AddFactor("elimination_period", "90", "multiply", dec("1.00")).
		AddFactor("elimination_period", "180", "multiply", dec("0.85")).
		AddFactor("benefit_period", "to65", "multiply", dec("1.00")).
		AddRider("cola", "Cost of living", "percent", dec("12"), false, 10).
		AddRider("waiver", "Waiver of premium", "add", dec("0.05"), true, 5).
		AddFee(RateFee{Code: "policy_fee", Type: FeeCharge, Mode: FeeFlat, Value: dec("75"), Mandatory: true, Sequence: 1}).
		AddFee(RateFee{Code: "multi_life", Type: FeeCredit, Mode: FeePercent, Value: dec("10"), Sequence: 2}).
		AddModal(ModeAnnual, dec("1"), dec("0")).
		AddModal(ModeMonthly, dec("0.0875"), dec("5.00"))
}

func TestBuildSealsPlan(t *testing.T) {
	snap, err := ltdBuilder().Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if snap.ID() == "" {
		t.Error("expected a generated plan id")
	}
	if snap.ContentHash().IsZero() {
		t.Error("expected a content hash")
	}
	if !snap.Verify() {
		t.Error("snapshot does not verify against its own hash")
	}
	if got := len(snap.Entries()); got != 4 {
		t.Errorf("Entries() = %d, want 4", got)
	}

	k := NewKey(Concrete("50"), Concrete("M"), Any, Concrete("4A"), Any)
	e, ok := snap.Entry(k)
	if !ok || !e.Rate.Equal(dec("2.2275")) {
		t.Errorf("Entry(%s) = %v %v, want 2.2275", k, e.Rate, ok)
	}

	if got := snap.FactorCodes(); strings.Join(got, ",") != "elimination_period,benefit_period" {
		t.Errorf("FactorCodes() = %v, want schema order", got)
	}

	riders := snap.Riders()
	if riders[0].Code != "waiver" || riders[1].Code != "cola" {
		t.Errorf("riders not in sequence order: %s, %s", riders[0].Code, riders[1].Code)
	}

	modes := snap.Modes()
	if len(modes) != 2 || modes[0] != ModeAnnual || modes[1] != ModeMonthly {
		t.Errorf("Modes() = %v", modes)
	}
}

func TestSnapshotAccessorsReturnCopies(t *testing.T) {
	snap, err := ltdBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}

	entries := snap.Entries()
	entries[0].Rate = dec("999")
	riders := snap.Riders()
	riders[0].Code = "changed"
	p := snap.Plan()
	p.Metadata["filing"] = "changed"

	if !snap.Verify() {
		t.Fatal("mutating accessor results changed the snapshot")
	}
	if snap.Plan().Metadata["filing"] != "TX-2026-114" {
		t.Error("plan metadata leaked")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := ltdBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	b, err := ltdBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentHash() != b.ContentHash() || a.ID() != b.ID() {
		t.Errorf("identical plans hash differently: %s vs %s", a.ContentHash(), b.ContentHash())
	}

	c, err := ltdBuilder().AddEntry([]string{"51", "M", "*", "4A", "*"}, dec("2.29")).Build()
	if err != nil {
		t.Fatal(err)
	}
	if c.ContentHash() == a.ContentHash() {
		t.Error("different plans share a content hash")
	}
}

func TestBuildNormalizesKeys(t *testing.T) {
	snap, err := NewBuilder(ltdHeader()).
		AddEntry([]string{"50", "male", "ca", "4a", "*"}, dec("2")).
		AddModal(ModeAnnual, dec("1"), dec("0")).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	k := NewKey(Concrete("50"), Concrete("M"), Concrete("CA"), Concrete("4A"), Any)
	if _, ok := snap.Entry(k); !ok {
		t.Errorf("normalized key %s not found in %v", k, snap.Entries())
	}
}

func TestBuildRejectsInvalidPlans(t *testing.T) {
	tests := []struct {
		name    string
		builder func() *Builder
		problem string
	}{
		{
			name: "wrong arity",
			builder: func() *Builder {
				return ltdBuilder().AddEntry([]string{"50", "M", "TX"}, dec("1"))
			},
			problem: "arity",
		},
		{
			name: "duplicate key",
			builder: func() *Builder {
				return ltdBuilder().AddEntry([]string{"50", "male", "*", "4A", "*"}, dec("3"))
			},
			problem: "duplicate key",
		},
		{
			name: "wildcard on sex",
			builder: func() *Builder {
				return ltdBuilder().AddEntry([]string{"50", "*", "*", "4A", "*"}, dec("3"))
			},
			problem: "sex may not be wildcarded",
		},
		{
			name: "overlapping age bands",
			builder: func() *Builder {
				return ltdBuilder().AddEntry([]string{"48-52", "M", "*", "4A", "*"}, dec("3"))
			},
			problem: "overlap",
		},
		{
			name: "zero rate",
			builder: func() *Builder {
				return ltdBuilder().AddEntry([]string{"45-49", "F", "*", "4A", "*"}, dec("0"))
			},
			problem: "must be positive",
		},
		{
			name: "negative rate",
			builder: func() *Builder {
				return ltdBuilder().AddEntry([]string{"45-49", "F", "*", "4A", "*"}, dec("-1.5"))
			},
			problem: "must be positive",
		},
		{
			name: "zero multiply factor",
			builder: func() *Builder {
				return ltdBuilder().AddFactor("benefit_period", "5yr", "multiply", dec("0"))
			},
			problem: "multiply factor 0 must be positive",
		},
		{
			name: "negative multiply rider",
			builder: func() *Builder {
				return ltdBuilder().AddRider("residual", "Residual", "multiply", dec("-1.1"), false, 20)
			},
			problem: "must be positive",
		},
		{
			name: "percent wipes out the premium",
			builder: func() *Builder {
				return ltdBuilder().AddFactor("benefit_period", "5yr", "percent", dec("-100"))
			},
			problem: "must be above -100",
		},
		{
			name: "factor not rated for product",
			builder: func() *Builder {
				return ltdBuilder().AddFactor("term_length", "20", "multiply", dec("1"))
			},
			problem: "not rated",
		},
		{
			name: "unknown apply mode",
			builder: func() *Builder {
				return ltdBuilder().AddFactor("cola", "yes", "divide", dec("1"))
			},
			problem: "unknown apply mode",
		},
		{
			name: "credit over one hundred percent",
			builder: func() *Builder {
				return ltdBuilder().AddFee(RateFee{Code: "bad", Type: FeeCredit, Mode: FeePercent, Value: dec("120")})
			},
			problem: "exceeds",
		},
		{
			name: "unknown payment mode",
			builder: func() *Builder {
				return ltdBuilder().AddModal(PaymentMode("weekly"), dec("0.02"), dec("0"))
			},
			problem: "unknown payment mode",
		},
		{
			name: "no entries",
			builder: func() *Builder {
				return NewBuilder(ltdHeader()).AddModal(ModeAnnual, dec("1"), dec("0"))
			},
			problem: "no rate entries",
		},
		{
			name: "expires before effective",
			builder: func() *Builder {
				p := ltdHeader()
				exp := day("2025-06-01")
				p.ExpiresOn = &exp
				return NewBuilder(p).
					AddEntry([]string{"50", "M", "*", "4A", "*"}, dec("1")).
					AddModal(ModeAnnual, dec("1"), dec("0"))
			},
			problem: "before it takes effect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder().Build()
			if err == nil {
				t.Fatal("expected InvalidPlan error")
			}
			if !rerrors.IsType(err, rerrors.TypeInvalidPlan) {
				t.Fatalf("error type = %s, want %s", rerrors.TypeOf(err), rerrors.TypeInvalidPlan)
			}
			e, _ := rerrors.As(err)
			problems, _ := e.Context["problems"].([]string)
			found := false
			for _, p := range problems {
				if strings.Contains(p, tt.problem) {
					found = true
				}
			}
			if !found {
				t.Errorf("problems %v do not mention %q", problems, tt.problem)
			}
		})
	}
}

func TestBuildRejectsUnknownProduct(t *testing.T) {
	p := ltdHeader()
	p.ProductType = "pet_insurance"
	_, err := NewBuilder(p).Build()
	if !rerrors.IsType(err, rerrors.TypeInvalidPlan) {
		t.Fatalf("expected InvalidPlan, got %v", err)
	}
}

func TestAgeBand(t *testing.T) {
	snap, err := ltdBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		age   int
		label string
		ok    bool
	}{
		{age: 50, label: "50", ok: true},
		{age: 45, label: "45-49", ok: true},
		{age: 49, label: "45-49", ok: true},
		{age: 44, ok: false},
		{age: 51, ok: false},
	}
	for _, tt := range tests {
		band, ok := snap.AgeBand(tt.age)
		if ok != tt.ok || band.Label != tt.label {
			t.Errorf("AgeBand(%d) = %q %v, want %q %v", tt.age, band.Label, ok, tt.label, tt.ok)
		}
	}
}

func TestParseAgeBand(t *testing.T) {
	tests := []struct {
		in      string
		lo, hi  int
		wantErr bool
	}{
		{in: "50", lo: 50, hi: 50},
		{in: "45-49", lo: 45, hi: 49},
		{in: " 18 - 24 ", lo: 18, hi: 24},
		{in: "49-45", wantErr: true},
		{in: "fifty", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := ParseAgeBand(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAgeBand(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && (b.Lo != tt.lo || b.Hi != tt.hi) {
				t.Errorf("ParseAgeBand(%q) = %d-%d, want %d-%d", tt.in, b.Lo, b.Hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestAdjustments(t *testing.T) {
	units := dec("65")
	premium := dec("144.7875")

	tests := []struct {
		mode  string
		value string
		want  string
	}{
		{mode: "multiply", value: "0.85", want: "123.069375"},
		{mode: "add", value: "0.10", want: "151.2875"},
		{mode: "percent", value: "12", want: "162.162"},
		{mode: "percent", value: "-10", want: "130.30875"},
	}
	for _, tt := range tests {
		t.Run(tt.mode+"_"+tt.value, func(t *testing.T) {
			adj, err := NewAdjustment(tt.mode, dec(tt.value))
			if err != nil {
				t.Fatal(err)
			}
			if got := adj.Apply(premium, units); !got.Equal(dec(tt.want)) {
				t.Errorf("Apply() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFeeApply(t *testing.T) {
	premium := dec("200")
	tests := []struct {
		fee  RateFee
		want string
	}{
		{RateFee{Type: FeeCharge, Mode: FeeFlat, Value: dec("75")}, "275"},
		{RateFee{Type: FeeCredit, Mode: FeePercent, Value: dec("10")}, "180"},
		{RateFee{Type: FeeCharge, Mode: FeePercent, Value: dec("5")}, "210"},
		{RateFee{Type: FeeCredit, Mode: FeeFlat, Value: dec("25")}, "175"},
	}
	for _, tt := range tests {
		if got := tt.fee.Apply(premium); !got.Equal(dec(tt.want)) {
			t.Errorf("%s/%s Apply() = %s, want %s", tt.fee.Type, tt.fee.Mode, got, tt.want)
		}
	}
}

func TestPlanWindow(t *testing.T) {
	exp := day("2027-01-01")
	p := Plan{EffectiveFrom: day("2026-01-01"), ExpiresOn: &exp}

	if !p.Covers(day("2026-01-01")) {
		t.Error("window should include its effective date")
	}
	if p.Covers(day("2027-01-01")) {
		t.Error("window should exclude its expiry date")
	}
	if p.Covers(day("2025-12-31")) {
		t.Error("window should exclude dates before it")
	}

	next := Plan{EffectiveFrom: day("2027-01-01")}
	if p.Overlaps(next) || next.Overlaps(p) {
		t.Error("adjacent windows should not overlap")
	}
	open := Plan{EffectiveFrom: day("2026-06-01")}
	if !p.Overlaps(open) {
		t.Error("open-ended window starting inside p should overlap")
	}
}
