package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"premium-rating/adapters/cache"
	"premium-rating/adapters/planfile"
	"premium-rating/core/rateplan"
	"premium-rating/db"
	"premium-rating/internal/config"
	"premium-rating/internal/logging"
	"premium-rating/internal/metrics"
)

// Plan sources selectable with rating.source
const (
	sourceFiles    = "files"
	sourceStore    = "store"
	sourceDatabase = "database"
)

// planDirOverride, when set, reads plans from that directory regardless of rating.source
var planDirOverride string

// planSource opens the configured plan source. The returned func releases it.
func planSource(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (rateplan.Source, func(), error) {
	noop := func() {}
	kind := cfg.Rating.Source
	dir := cfg.Rating.PlanDir
	if planDirOverride != "" {
		kind, dir = sourceFiles, planDirOverride
	}

	var (
		src     rateplan.Source
		closers []func()
	)
	switch kind {
	case sourceFiles, "":
		src = planfile.NewLoader(dir)
	case sourceStore:
		store, err := rateplan.NewFileStore(cfg.Rating.StoreDir)
		if err != nil {
			return nil, noop, err
		}
		src = store
	case sourceDatabase:
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		closers = append(closers, func() { conn.Close() })
		src = db.NewPlanStore(conn)
	default:
		return nil, noop, fmt.Errorf("unknown plan source %q (want files, store or database)", kind)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// plan files are never cached
	if kind != sourceFiles && kind != "" {
		client, err := cache.Connect(ctx, cfg.Cache)
		if err != nil {
			logging.Warn("snapshot cache disabled", zap.Error(err))
		} else if client != nil {
			closers = append(closers, func() { client.Close() })
			src = cache.New(client, cfg.Cache.TTL, m).Source(kind, src)
		}
	}
	return src, closeAll, nil
}

// loadRepository loads every plan version into a repository
func loadRepository(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*rateplan.Repository, error) {
	src, closeSrc, err := planSource(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	repo := rateplan.NewRepository()
	n, err := repo.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	m.SetPlansLoaded(repo.Len())
	logging.Debug("plans loaded", zap.Int("plans", n))
	return repo, nil
}
