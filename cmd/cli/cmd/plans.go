package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"premium-rating/adapters/planfile"
	"premium-rating/core/rateplan"
	"premium-rating/db"
	"premium-rating/internal/config"
	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/metrics"
)

var (
	importTarget string
	listProduct  string
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Inspect, validate and import rate plans",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plan versions from the configured source",
	Args:  cobra.NoArgs,
	RunE:  runPlansList,
}

var plansValidateCmd = &cobra.Command{
	Use:   "validate <file-or-dir>...",
	Short: "Check plan files without importing them",
	Long: `Parse and build every plan in the given files or directories, then check
that no two active versions of the same product and carrier overlap.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlansValidate,
}

var plansImportCmd = &cobra.Command{
	Use:   "import <file-or-dir>...",
	Short: "Import plan files into the snapshot store or database",
	Long: `Import plan versions. Stored versions are immutable: importing the same
content again is a no-op, importing different content under an existing id fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlansImport,
}

var plansVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the snapshot store against its recorded hashes",
	Args:  cobra.NoArgs,
	RunE:  runPlansVerify,
}

func init() {
	rootCmd.AddCommand(plansCmd)
	plansCmd.AddCommand(plansListCmd, plansValidateCmd, plansImportCmd, plansVerifyCmd)

	plansListCmd.Flags().StringVar(&planDirOverride, "plans", "", "read plan files from this directory instead of the configured source")
	plansListCmd.Flags().StringVar(&listProduct, "product", "", "only list this product type")
	plansImportCmd.Flags().StringVar(&importTarget, "to", sourceStore, "import target (store or database)")
}

func runPlansList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	repo, err := loadRepository(ctx, config.Get(), metrics.New(prometheus.NewRegistry()))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tCARRIER\tVERSION\tEFFECTIVE\tEXPIRES\tACTIVE\tENTRIES\tID")
	for _, p := range repo.All() {
		if listProduct != "" && string(p.ProductType()) != listProduct {
			continue
		}
		plan := p.Plan()
		expires := "-"
		if plan.ExpiresOn != nil {
			expires = plan.ExpiresOn.Format(rateplan.DateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%d\t%s\n",
			plan.ProductType, plan.CarrierID, plan.Version,
			plan.EffectiveFrom.Format(rateplan.DateLayout), expires,
			plan.Active, len(p.Entries()), plan.ID)
	}
	return w.Flush()
}

// readPlans builds every plan in the given files and directories
func readPlans(paths []string) ([]*rateplan.Snapshot, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && planfile.IsPlanFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	var out []*rateplan.Snapshot
	for _, f := range files {
		docs, err := planfile.ParseFile(f)
		if err != nil {
			return nil, err
		}
		snaps, err := planfile.Build(f, docs)
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}

func runPlansValidate(cmd *cobra.Command, args []string) error {
	plans, err := readPlans(args)
	if err != nil {
		printProblems(cmd, err)
		return err
	}
	repo := rateplan.NewRepository()
	for _, p := range plans {
		if err := repo.Activate(p); err != nil {
			printProblems(cmd, err)
			return err
		}
	}
	for _, p := range plans {
		fmt.Fprintf(cmd.OutOrStdout(), "ok  %-16s %-12s %-10s %s\n", p.ProductType(), p.CarrierID(), p.Version(), p.ContentHash().Hex()[:12])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d plan versions valid\n", len(plans))
	return nil
}

// printProblems lists every validation problem attached to a plan error
func printProblems(cmd *cobra.Command, err error) {
	fmt.Fprintln(cmd.ErrOrStderr(), err)
	e, ok := rerrors.As(err)
	if !ok {
		return
	}
	if list, ok := e.Context["problems"].([]string); ok {
		for _, p := range list {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
		}
	}
}

func runPlansImport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	plans, err := readPlans(args)
	if err != nil {
		printProblems(cmd, err)
		return err
	}
	cfg := config.Get()

	switch importTarget {
	case sourceStore:
		store, err := rateplan.NewFileStore(cfg.Rating.StoreDir)
		if err != nil {
			return err
		}
		for _, p := range plans {
			if store.Has(p.ID()) {
				existing, err := store.Get(ctx, p.ID())
				if err != nil {
					return err
				}
				if existing.ContentHash() == p.ContentHash() {
					fmt.Fprintf(cmd.OutOrStdout(), "unchanged  %s\n", p.ID())
					continue
				}
			}
			rec, err := store.Store(ctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", p.ID(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored     %s -> %s\n", p.ID(), rec.File)
		}
	case sourceDatabase:
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()
		store := db.NewPlanStore(conn)
		for _, p := range plans {
			if err := store.Save(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved      %s\n", p.ID())
		}
	default:
		return fmt.Errorf("unknown import target %q (want store or database)", importTarget)
	}
	return nil
}

func runPlansVerify(cmd *cobra.Command, args []string) error {
	store, err := rateplan.NewFileStore(config.Get().Rating.StoreDir)
	if err != nil {
		return err
	}
	problems := store.VerifyIntegrity()
	for _, p := range problems {
		fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d stored plan versions failed verification", len(problems))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d stored plan versions verified\n", len(store.List()))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
