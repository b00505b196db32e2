package rating

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"premium-rating/core/rateplan"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func boolPtr(b bool) *bool { return &b }

func decPtr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var (
	asOf        = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sexMult     = map[string]string{"M": "1.0", "F": "1.20"}
	occMult     = map[string]string{"4A": "0.90", "3A": "1.00", "2A": "1.15"}
	ltdBaseRate = d("1.80")
)

// ltdRate is the filed rate for an age/sex/occupation cell:
// 1.80 x (0.5 + (age-25) x 0.035) x sex x occupation
func ltdRate(age int, sex, occ string) decimal.Decimal {
	ageMult := d("0.5").Add(decimal.NewFromInt(int64(age - 25)).Mul(d("0.035")))
	return ltdBaseRate.Mul(ageMult).Mul(d(sexMult[sex])).Mul(d(occMult[occ]))
}

// ltdPlan is a nationwide disability plan: state and underwriting class are wildcards
func ltdPlan(t *testing.T, extra ...func(*rateplan.Builder)) *rateplan.Snapshot {
	t.Helper()
	b := rateplan.NewBuilder(rateplan.Plan{
		ProductType:   rateplan.DisabilityLTD,
		CarrierID:     "acme",
		Version:       "2026.1",
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:        true,
	})
	for age := 30; age <= 60; age++ {
		for sex := range sexMult {
			for occ := range occMult {
				b.AddEntry([]string{strconv.Itoa(age), sex, "*", occ, "*"}, ltdRate(age, sex, occ))
			}
		}
	}

	b.AddFactor("elimination_period", "30", "multiply", d("1.25")).
		AddFactor("elimination_period", "90", "multiply", d("1.00")).
		AddFactor("elimination_period", "180", "multiply", d("0.85")).
		AddFactor("benefit_period", "to65", "multiply", d("1.00")).
		AddFactor("benefit_period", "5yr", "multiply", d("0.75")).
		AddFactor("definition", "own_occ_2yr_then_any", "multiply", d("1.00")).
		AddFactor("definition", "own_occ", "multiply", d("1.20")).
		AddFactor("smoker_status", SmokerStatusNonSmoker, "multiply", d("1.00")).
		AddFactor("smoker_status", SmokerStatusSmoker, "percent", d("25")).
		AddFactor("build", BuildUnderweight, "multiply", d("1.00")).
		AddFactor("build", BuildNormal, "multiply", d("1.00")).
		AddFactor("build", BuildOverweight, "add", d("0.10")).
		AddFactor("build", BuildObese, "multiply", d("1.30")).
		AddFactor("health_class", "preferred", "multiply", d("0.90")).
		AddFactor("health_class", "standard", "multiply", d("1.00"))

	b.AddRider("cola", "Cost of living adjustment", "percent", d("12"), false, 10).
		AddRider("residual", "Residual disability", "add", d("0.08"), false, 20)

	b.AddFee(rateplan.RateFee{Code: "policy_fee", Name: "Policy fee", Type: rateplan.FeeCharge, Mode: rateplan.FeeFlat, Value: d("75"), Sequence: 1}).
		AddFee(rateplan.RateFee{Code: "admin_fee", Name: "Admin fee", Type: rateplan.FeeCharge, Mode: rateplan.FeeFlat, Value: d("25"), Sequence: 2}).
		AddFee(rateplan.RateFee{Code: "multi_life", Name: "Multi-life credit", Type: rateplan.FeeCredit, Mode: rateplan.FeePercent, Value: d("10"), Sequence: 3})

	b.AddModal(rateplan.ModeAnnual, d("1"), d("0")).
		AddModal(rateplan.ModeSemiannual, d("0.52"), d("2.00")).
		AddModal(rateplan.ModeQuarterly, d("0.265"), d("3.00")).
		AddModal(rateplan.ModeMonthly, d("0.0875"), d("5.00"))

	for _, fn := range extra {
		fn(b)
	}

	snap, err := b.Build()
	if err != nil {
		t.Fatalf("fixture plan: %v", err)
	}
	return snap
}

// scenarioProfile is a 50-year-old male, occupation class 4A, no underwriting class
func scenarioProfile() ApplicantProfile {
	return ApplicantProfile{
		Age:             50,
		Sex:             "M",
		State:           "TX",
		Tobacco:         boolPtr(false),
		OccupationClass: "4A",
		HealthClass:     "standard",
		BMI:             decPtr("23.4"),
	}
}

func scenarioSelection() ProductSelection {
	return ProductSelection{
		ProductType:    rateplan.DisabilityLTD,
		ExposureAmount: d("6500"),
		Factors: map[string]string{
			"elimination_period": "90",
			"benefit_period":     "to65",
			"definition":         "own_occ_2yr_then_any",
		},
		Fees: []string{"policy_fee", "admin_fee"},
		Mode: rateplan.ModeMonthly,
		AsOf: asOf,
	}
}
