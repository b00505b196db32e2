package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"premium-rating/api"
	"premium-rating/core/output"
	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
	"premium-rating/internal/config"
	"premium-rating/internal/metrics"
)

// quoteFlags holds the applicant and product flags shared by quote and compare
type quoteFlags struct {
	requestFile string
	format      string

	product    string
	carrier    string
	amount     string
	mode       string
	asOf       string
	factors    map[string]string
	riders     []string
	excluded   []string
	fees       []string
	age        int
	sex        string
	state      string
	tobacco    bool
	occupation string
	uwClass    string
	health     string
	build      string
	bmi        string
	income     string
}

func (f *quoteFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.requestFile, "request", "r", "", "JSON quote request file (same body as POST /v1/quotes); flags are ignored")
	fl.StringVarP(&f.format, "format", "f", "cli", "output format (cli, json, markdown)")
	fl.StringVar(&planDirOverride, "plans", "", "read plan files from this directory instead of the configured source")

	fl.StringVar(&f.product, "product", "", "product type (disability_ltd, life_term, long_term_care)")
	fl.StringVar(&f.carrier, "carrier", "", "carrier id")
	fl.StringVar(&f.amount, "amount", "", "exposure amount in the product's unit (monthly benefit, face amount, daily benefit)")
	fl.StringVar(&f.mode, "mode", "", "payment mode (annual, semiannual, quarterly, monthly)")
	fl.StringVar(&f.asOf, "as-of", "", "rate as of this date (YYYY-MM-DD, default today)")
	fl.StringToStringVar(&f.factors, "factor", nil, "factor selection code=option (repeatable)")
	fl.StringSliceVar(&f.riders, "rider", nil, "rider to add")
	fl.StringSliceVar(&f.excluded, "exclude-rider", nil, "default rider to remove")
	fl.StringSliceVar(&f.fees, "fee", nil, "optional fee or credit to apply")

	fl.IntVar(&f.age, "age", 0, "applicant age")
	fl.StringVar(&f.sex, "sex", "", "applicant sex (M or F)")
	fl.StringVar(&f.state, "state", "", "two-letter state")
	fl.BoolVar(&f.tobacco, "tobacco", false, "applicant uses tobacco")
	fl.StringVar(&f.occupation, "occupation", "", "occupation class")
	fl.StringVar(&f.uwClass, "uw-class", "", "underwriting class")
	fl.StringVar(&f.health, "health", "", "health class")
	fl.StringVar(&f.build, "build", "", "build class (underweight, normal, overweight, obese)")
	fl.StringVar(&f.bmi, "bmi", "", "body mass index")
	fl.StringVar(&f.income, "income", "", "annual income")
}

// request builds and validates the quote request
func (f *quoteFlags) request(cmd *cobra.Command) (*api.QuoteRequest, error) {
	var req api.QuoteRequest
	if f.requestFile != "" {
		data, err := os.ReadFile(f.requestFile)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.requestFile, err)
		}
	} else {
		req = api.QuoteRequest{
			ProductType:    f.product,
			CarrierID:      f.carrier,
			ExposureAmount: f.amount,
			Factors:        f.factors,
			Riders:         f.riders,
			ExcludedRiders: f.excluded,
			Fees:           f.fees,
			Mode:           f.mode,
			AsOf:           f.asOf,
			Applicant: api.Applicant{
				Age:               f.age,
				Sex:               f.sex,
				State:             strings.ToUpper(f.state),
				OccupationClass:   f.occupation,
				UnderwritingClass: f.uwClass,
				HealthClass:       f.health,
				BuildClass:        f.build,
			},
		}
		if cmd.Flags().Changed("tobacco") {
			t := f.tobacco
			req.Applicant.Tobacco = &t
		}
		if f.bmi != "" {
			req.Applicant.BMI = &f.bmi
		}
		if f.income != "" {
			req.Applicant.AnnualIncome = &f.income
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// newService loads plans and builds the quoting service from configuration
func newService(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*quoting.Service, *rateplan.Repository, error) {
	repo, err := loadRepository(ctx, cfg, m)
	if err != nil {
		return nil, nil, err
	}
	opts := []quoting.Option{quoting.WithMetrics(m)}
	if cfg.Rating.DefaultMode != "" {
		mode, err := rateplan.ParsePaymentMode(cfg.Rating.DefaultMode)
		if err != nil {
			return nil, nil, fmt.Errorf("rating.default_mode: %w", err)
		}
		opts = append(opts, quoting.WithDefaultMode(mode))
	}
	return quoting.NewService(repo, opts...), repo, nil
}

var quoteOpts quoteFlags

// quoteCmd rates one applicant against one plan
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Rate one applicant against a carrier's plan",
	Long: `Rate one applicant and print the itemized premium.

Examples:
  premium-rating quote --plans ./plans --product disability_ltd --carrier acme \
    --age 50 --sex M --state TX --occupation 4A --amount 6500 \
    --factor elimination_period=90 --factor benefit_period=to65 \
    --factor definition=own_occ_2yr_then_any --fee policy_fee --fee admin_fee --mode monthly
  premium-rating quote --request applicant.json --format json`,
	Args: cobra.NoArgs,
	RunE: runQuote,
}

func init() {
	quoteOpts.register(quoteCmd)
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	formatter, err := output.NewRegistry().Get(quoteOpts.format)
	if err != nil {
		return err
	}
	req, err := quoteOpts.request(cmd)
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

	svc, _, err := newService(ctx, config.Get(), metrics.New(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	result, plan, err := svc.Quote(ctx, profile, sel)
	if err != nil {
		return err
	}
	return formatter.Render(cmd.OutOrStdout(), output.SingleQuote(quoting.FromRating(result, plan, sel)))
}
