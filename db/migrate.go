package db

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a migrator against a postgres:// URL
func NewMigrator(databaseURL string) (*Migrator, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, rerrors.Internal("failed to open embedded migrations", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, rerrors.Config("failed to create migrate instance", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration
func (g *Migrator) Up() error {
	return g.run("up", g.m.Up)
}

// Down reverts every migration
func (g *Migrator) Down() error {
	return g.run("down", g.m.Down)
}

// Steps applies n migrations, reverting when n is negative
func (g *Migrator) Steps(n int) error {
	return g.run("steps", func() error { return g.m.Steps(n) })
}

// Version returns the current schema version. A database never migrated reports 0.
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, rerrors.Internal("failed to read migration version", err)
	}
	return v, dirty, nil
}

// Close releases the source and database handles
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func (g *Migrator) run(direction string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		logging.Info("schema already current", zap.String("direction", direction))
		return nil
	}
	if err != nil {
		return rerrors.Internal("migration "+direction+" failed", err)
	}
	logging.Info("migrations applied", zap.String("direction", direction))
	return nil
}
