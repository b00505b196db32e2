package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-rating/internal/config"
)

var testPlans = filepath.Join("..", "..", "..", "adapters", "planfile", "testdata")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig := config.Get()
	t.Cleanup(func() {
		config.Set(orig)
		planDirOverride = ""
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "premium-rating version "+Version)
}

func TestPlansValidate(t *testing.T) {
	out, err := execute(t, "plans", "validate", testPlans)
	require.NoError(t, err)
	assert.Contains(t, out, "3 plan versions valid")
	assert.Contains(t, out, "disability_ltd")
	assert.Contains(t, out, "northwind")
}

func TestPlansValidateRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte("plan {"), 0o644))

	_, err := execute(t, "plans", "validate", path)
	assert.Error(t, err)
}

func TestQuoteJSON(t *testing.T) {
	out, err := execute(t, "quote",
		"--plans", testPlans,
		"--product", "disability_ltd",
		"--carrier", "acme",
		"--age", "50", "--sex", "M", "--state", "tx",
		"--tobacco=false", "--health", "standard", "--build", "normal", "--occupation", "4A",
		"--amount", "6500",
		"--factor", "elimination_period=90",
		"--factor", "benefit_period=to65",
		"--factor", "definition=own_occ_2yr_then_any",
		"--fee", "policy_fee", "--fee", "admin_fee",
		"--mode", "monthly",
		"--as-of", "2026-03-01",
		"--format", "json",
	)
	require.NoError(t, err, out)

	var quote struct {
		CarrierID     string          `json:"carrier_id"`
		PlanVersion   string          `json:"plan_version"`
		Mode          string          `json:"mode"`
		AnnualPremium decimal.Decimal `json:"annual_premium"`
		ModalPremium  decimal.Decimal `json:"modal_premium"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &quote), out)
	assert.Equal(t, "acme", quote.CarrierID)
	assert.Equal(t, "2026.1", quote.PlanVersion)
	assert.Equal(t, "monthly", quote.Mode)
	assert.True(t, quote.ModalPremium.Equal(decimal.RequireFromString("26.42")), "monthly %s", quote.ModalPremium)
}

func TestQuoteRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "quote", "--plans", testPlans, "--product", "life_term", "--amount", "1000", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markdown")
}

func TestMigrateStepsNeedsNumber(t *testing.T) {
	_, err := execute(t, "migrate", "steps", "two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid steps argument")
}
