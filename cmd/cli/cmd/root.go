// Package cmd provides the CLI commands for premium-rating.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"premium-rating/internal/config"
	"premium-rating/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "premium-rating",
	Short: "Rate insurance premiums from carrier rate plans",
	Long: `premium-rating prices disability, term life and long-term care coverage
from versioned carrier rate plans, and compares carriers side by side.

Every quote is itemized: base rate, each factor, rider and fee, the annual
premium and the premium for the chosen payment mode.

Examples:
  premium-rating plans validate ./plans
  premium-rating quote --product disability_ltd --carrier acme --age 50 --sex M --occupation 4A --amount 6500
  premium-rating compare --request applicant.json --format markdown
  premium-rating serve`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: defaults plus RATING_* environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "premium-rating version %s\n", Version)
	},
}
