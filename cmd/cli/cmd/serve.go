package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"premium-rating/adapters/carrier"
	"premium-rating/api"
	"premium-rating/core/quoting"
	"premium-rating/internal/config"
	"premium-rating/internal/logging"
	"premium-rating/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quoting HTTP API",
	Long: `Load every plan version from the configured source and serve quotes,
comparisons and plan lookups over HTTP. Prometheus metrics are exposed on
/metrics. The server drains in-flight requests on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&planDirOverride, "plans", "", "read plan files from this directory instead of the configured source")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, repo, err := newService(ctx, cfg, m)
	if err != nil {
		return err
	}
	adapters, err := carrier.FromConfig(cfg.Carriers)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Deps{
		Service:  svc,
		Comparer: quoting.NewComparer(svc, repo, adapters),
		Plans:    repo,
		Gatherer: reg,
		Version:  Version,
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	logging.Info("starting server",
		zap.String("addr", addr),
		zap.Int("plans", repo.Len()),
		zap.Int("carriers", len(cfg.Carriers)))
	return srv.ListenAndServe(ctx, addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}
