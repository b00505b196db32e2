package cmd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"premium-rating/adapters/carrier"
	"premium-rating/core/output"
	"premium-rating/core/quoting"
	"premium-rating/internal/config"
	"premium-rating/internal/metrics"
)

var (
	compareOpts    quoteFlags
	compareTimeout time.Duration
)

// compareCmd quotes every carrier offering a product
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Quote one applicant with every carrier offering a product",
	Long: `Quote the applicant against every active plan for the product, plus every
configured carrier rating API, in parallel. Carriers that cannot quote are
listed with the reason instead of failing the comparison.

Examples:
  premium-rating compare --plans ./plans --product life_term --age 35 --sex F --amount 500000 --factor term_length=20
  premium-rating compare --request applicant.json --format markdown`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	compareOpts.register(compareCmd)
	compareCmd.Flags().DurationVar(&compareTimeout, "carrier-timeout", 5*time.Second, "timeout for each carrier rating API call")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	formatter, err := output.NewRegistry().Get(compareOpts.format)
	if err != nil {
		return err
	}
	req, err := compareOpts.request(cmd)
	if err != nil {
		return err
	}
	profile, err := req.Profile()
	if err != nil {
		return err
	}
	sel, err := req.Selection()
	if err != nil {
		return err
	}

	cfg := config.Get()
	svc, repo, err := newService(ctx, cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	adapters, err := carrier.FromConfig(cfg.Carriers)
	if err != nil {
		return err
	}

	// a comparison always spans carriers
	sel.CarrierID = ""
	comparer := quoting.NewComparer(svc, repo, adapters)
	comparer.Timeout = compareTimeout
	cmp, err := comparer.Compare(ctx, profile, sel)
	if err != nil {
		return err
	}
	return formatter.Render(cmd.OutOrStdout(), output.FromComparison(cmp))
}
