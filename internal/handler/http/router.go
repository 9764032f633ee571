package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shinshin4n4n/tube-review-sub001/internal/service"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/health"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/middleware"
)

// RoleServiceRole may trigger maintenance endpoints.
const RoleServiceRole = "service_role"

// RouterConfig carries the HTTP-only settings of the router.
type RouterConfig struct {
	CORS          middleware.CORSConfig
	PprofCIDRs    []string
	RankingMaxAge time.Duration
	WriteLimit    middleware.RateLimitConfig
}

// NewRouter creates a chi router with all review service routes registered.
// metrics and gatherer may be nil.
func NewRouter(
	reviewService *service.ReviewService,
	rankingService *service.RankingService,
	refresher StatsRefresher,
	validateToken middleware.TokenValidator,
	healthHandler *health.Handler,
	metrics *middleware.HTTPMetrics,
	gatherer prometheus.Gatherer,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Tracing)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.AccessLog)
	if metrics != nil {
		r.Use(metrics.Middleware)
	}
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	reviewHandler := NewReviewHandler(reviewService, logger)
	rankingHandler := NewRankingHandler(rankingService, refresher, logger)
	requireAuth := middleware.Auth(validateToken)
	optionalAuth := middleware.OptionalAuth(validateToken)
	writeLimit := middleware.RateLimit(cfg.WriteLimit, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/reviews", func(r chi.Router) {
			r.With(optionalAuth).Post("/validate", reviewHandler.ValidateReview)
			r.Get("/recent", rankingHandler.GetRecentReviews)

			r.Route("/{reviewId}", func(r chi.Router) {
				r.With(optionalAuth).Get("/", reviewHandler.GetReview)
				r.With(requireAuth).Put("/", reviewHandler.UpdateReview)
				r.With(requireAuth).Delete("/", reviewHandler.DeleteReview)
				r.With(requireAuth, writeLimit).Post("/helpful", reviewHandler.ToggleHelpful)
			})
		})

		r.Route("/channels/{channelId}", func(r chi.Router) {
			r.Get("/reviews", reviewHandler.ListChannelReviews)
			r.With(requireAuth, writeLimit).Post("/reviews", reviewHandler.SubmitReview)
			r.With(middleware.CacheControl(cfg.RankingMaxAge)).Get("/stats", rankingHandler.GetChannelStats)
		})

		r.With(middleware.CacheControl(cfg.RankingMaxAge)).Get("/rankings", rankingHandler.GetRanking)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRole(RoleServiceRole))
			r.Post("/stats/refresh", rankingHandler.RefreshStats)
		})
	})

	return r
}
