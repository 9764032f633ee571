// Package app wires the review service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shinshin4n4n/tube-review-sub001/internal/auth"
	"github.com/shinshin4n4n/tube-review-sub001/internal/catalog"
	"github.com/shinshin4n4n/tube-review-sub001/internal/config"
	"github.com/shinshin4n4n/tube-review-sub001/internal/event"
	handler "github.com/shinshin4n4n/tube-review-sub001/internal/handler/http"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	rediscache "github.com/shinshin4n4n/tube-review-sub001/internal/repository/redis"
	"github.com/shinshin4n4n/tube-review-sub001/internal/service"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/health"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/httpclient"
	pkgkafka "github.com/shinshin4n4n/tube-review-sub001/pkg/kafka"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/middleware"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/tracing"
)

const serviceName = "review-service"

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	stores         *Stores
	redis          *redis.Client
	kafka          *pkgkafka.Producer
	refresher      *service.StatsRefresher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	stores, err := OpenStores(ctx, cfg, true, logger)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger, stores: stores, tracerShutdown: tracerShutdown}
	if err := a.build(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, register := range []func(prometheus.Registerer) error{pkgkafka.RegisterMetrics, httpclient.RegisterMetrics} {
		if err := register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	if a.stores.Pool != nil {
		if err := database.RegisterPoolMetrics(reg, a.stores.Pool, serviceName); err != nil {
			return fmt.Errorf("register pool metrics: %w", err)
		}
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg, serviceName)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	refreshMetrics, err := service.NewRefreshMetrics(reg)
	if err != nil {
		return fmt.Errorf("register refresh metrics: %w", err)
	}

	var cache repository.RankingCache
	cache, a.redis = NewRankingCache(ctx, cfg, logger)
	var events *event.Producer
	events, a.kafka = NewEvents(ctx, cfg, logger)

	var lookup service.ChannelLookup
	if cfg.CatalogEnabled() {
		yt, err := catalog.NewYouTube(ctx, catalog.Config{
			APIKey:   cfg.YouTubeAPIKey,
			Endpoint: cfg.YouTubeEndpoint,
			Timeout:  cfg.CatalogTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("create youtube catalog: %w", err)
		}
		lookup = yt
		logger.Info("youtube catalog enabled")
	} else {
		logger.Info("youtube catalog disabled, only stored channels can be reviewed")
	}

	// Build the dependency graph.
	resolver := service.NewChannelResolver(a.stores.Channels, lookup, logger)
	reviewService := service.NewReviewService(a.stores.Reviews, a.stores.Votes, resolver, events,
		service.ReviewOptions{AllowSelfVote: cfg.AllowSelfHelpfulVote}, logger)
	rankingService := service.NewRankingService(a.stores.Reviews, a.stores.Stats, cache, logger)
	a.refresher = NewRefresher(cfg, a.stores.Stats, cache, events, refreshMetrics, logger)

	healthHandler := a.healthChecks()
	jwt := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTLeeway)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(reviewService, rankingService, a.refresher, jwt.Validator(), healthHandler,
		httpMetrics, reg, handler.RouterConfig{
			CORS:          cors,
			PprofCIDRs:    cfg.PprofAllowedCIDRs,
			RankingMaxAge: cfg.RankingMaxAge,
			WriteLimit: middleware.RateLimitConfig{
				RPS:   cfg.WriteRateLimitRPS,
				Burst: cfg.WriteRateLimitBurst,
			},
		}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) healthChecks() *health.Handler {
	h := health.NewHandler()
	h.RegisterCritical("store", a.stores.Ping)
	if a.redis != nil {
		h.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.kafka != nil {
		h.RegisterNonCritical("kafka", a.kafka.Ping)
	}
	h.RegisterNonCritical("channel_stats", StatsFreshness(a.stores.Stats, 2*a.cfg.StatsRefreshInterval, time.Now))
	return h
}

// StatsFreshness fails until a refresh has completed and whenever the last
// one is older than maxAge.
func StatsFreshness(stats repository.ChannelStatsRepository, maxAge time.Duration, now func() time.Time) health.Checker {
	return func(ctx context.Context) error {
		last, err := stats.LastRefresh(ctx)
		if err != nil {
			return err
		}
		if age := now().Sub(last.RefreshedAt); age > maxAge {
			return fmt.Errorf("channel stats are %s old", age.Round(time.Second))
		}
		return nil
	}
}

// Run starts the HTTP server and the stats refresher, then blocks until the
// context is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.refresher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	runErr := g.Wait()
	return errors.Join(runErr, a.closeResources())
}

// closeResources flushes spans and closes the producer, cache and pool, in
// that order.
func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.stores.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// NewRankingCache connects to Redis when enabled. A Redis that cannot be
// reached at startup leaves the service running uncached.
func NewRankingCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.RankingCache, *redis.Client) {
	if !cfg.RedisEnabled {
		return nil, nil
	}
	client, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, ranking cache disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	logger.Info("ranking cache enabled", slog.String("addr", cfg.Redis.Addr), slog.Duration("ttl", cfg.RankingCacheTTL))
	return rediscache.NewRankingCache(client, cfg.RankingCacheTTL), client
}

// NewEvents returns the event producer and, when Kafka is enabled, the
// underlying Kafka producer for health checks and shutdown.
func NewEvents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*event.Producer, *pkgkafka.Producer) {
	if !cfg.KafkaEnabled {
		return event.NewProducer(nil, logger), nil
	}
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := producer.Ping(ctx); err != nil {
		logger.Warn("kafka producer ping failed, continuing in degraded mode", slog.String("error", err.Error()))
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	return event.NewProducer(producer, logger), producer
}

// NewRefresher builds the stats refresher from configuration. cache and
// metrics may be nil.
func NewRefresher(
	cfg *config.Config,
	stats repository.ChannelStatsRepository,
	cache repository.RankingCache,
	events service.EventPublisher,
	metrics *service.RefreshMetrics,
	logger *slog.Logger,
) *service.StatsRefresher {
	return service.NewStatsRefresher(stats, cache, events, metrics, service.RefresherConfig{
		Interval:    cfg.StatsRefreshInterval,
		Window:      cfg.StatsRecentWindow,
		MaxAttempts: cfg.StatsMaxRetries,
	}, logger)
}
