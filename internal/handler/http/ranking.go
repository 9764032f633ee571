package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/service"
	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/httputil"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
)

const defaultRankingLimit = 10

// StatsRefresher triggers an on-demand stats refresh.
type StatsRefresher interface {
	Refresh(ctx context.Context) (*domain.StatsRefresh, error)
}

// RankingHandler serves rankings, channel stats and the recent feed.
type RankingHandler struct {
	service   *service.RankingService
	refresher StatsRefresher
	logger    *slog.Logger
}

func NewRankingHandler(svc *service.RankingService, refresher StatsRefresher, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{service: svc, refresher: refresher, logger: logger}
}

// GetRanking handles GET /api/v1/rankings
// @Summary Channel ranking
// @Description Channels ordered by recent review count, then average rating, then review count
// @Tags rankings
// @Produce json
// @Param limit query int false "Maximum channels (1-50)" default(10)
// @Success 200 {array} domain.ChannelStats
// @Failure 400 {object} httputil.Response
// @Router /api/v1/rankings [get]
func (h *RankingHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryInt(r, "limit", defaultRankingLimit)
	if !ok {
		httputil.WriteError(w, r, apperrors.Validation(map[string]string{"limit": "must be an integer"}), h.logger)
		return
	}

	ranking, err := h.service.GetRanking(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ranking)
}

// GetRecentReviews handles GET /api/v1/reviews/recent
// @Summary Recent reviews feed
// @Tags reviews
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 50)" default(20)
// @Success 200 {object} httputil.PaginatedResponse[domain.FeedItem]
// @Failure 400 {object} httputil.Response
// @Router /api/v1/reviews/recent [get]
func (h *RankingHandler) GetRecentReviews(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	items, total, err := h.service.GetRecentReviews(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(items, total, page.Page, page.PerPage))
}

// GetChannelStats handles GET /api/v1/channels/{channelId}/stats
func (h *RankingHandler) GetChannelStats(w http.ResponseWriter, r *http.Request) {
	cs, err := h.service.GetChannelStats(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cs)
}

// RefreshStats handles POST /api/v1/admin/stats/refresh
// @Summary Recompute channel stats now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.StatsRefresh
// @Failure 409 {object} httputil.Response
// @Router /api/v1/admin/stats/refresh [post]
func (h *RankingHandler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	ref, err := h.refresher.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrRefreshInProgress) {
			err = apperrors.Conflict(err.Error())
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ref)
}
