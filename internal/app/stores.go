package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shinshin4n4n/tube-review-sub001/internal/config"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository/memory"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository/postgres"
	"github.com/shinshin4n4n/tube-review-sub001/migrations"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
)

// Stores is one backend's set of repositories. Pool is nil for the memory
// backend.
type Stores struct {
	Reviews  repository.ReviewRepository
	Votes    repository.HelpfulVoteRepository
	Channels repository.ChannelRepository
	Stats    repository.ChannelStatsRepository
	Profiles repository.ProfileRepository
	Pool     *pgxpool.Pool
}

// Close releases the connection pool, if any.
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Ping checks the backing database. The memory backend is always up.
func (s *Stores) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// NewMemoryStores wires every repository to one in-process store.
func NewMemoryStores(store *memory.Store) *Stores {
	return &Stores{
		Reviews:  store.Reviews(),
		Votes:    store.Votes(),
		Channels: store.Channels(),
		Stats:    store.Stats(),
		Profiles: store.Profiles(),
	}
}

// NewPostgresStores wires every repository to pool.
func NewPostgresStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Reviews:  postgres.NewReviewRepository(pool),
		Votes:    postgres.NewHelpfulVoteRepository(pool),
		Channels: postgres.NewChannelRepository(pool),
		Stats:    postgres.NewChannelStatsRepository(pool),
		Profiles: postgres.NewProfileRepository(pool),
		Pool:     pool,
	}
}

// OpenPostgres connects to PostgreSQL and configures slow query logging.
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.DBName),
	)
	if t := cfg.SlowQueryThreshold(); t > 0 {
		database.SetSlowQueryLogging(t, logger)
	}
	return pool, nil
}

// Migrate applies pending schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")
	return nil
}

// PendingMigrations lists migrations not yet applied to pool.
func PendingMigrations(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	return database.PendingMigrations(ctx, pool, migrations.FS)
}

// OpenStores opens the configured backend. The postgres backend is
// migrated when migrate is set.
func OpenStores(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (*Stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return NewMemoryStores(memory.NewStore()), nil
	}

	pool, err := OpenPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return NewPostgresStores(pool), nil
}
