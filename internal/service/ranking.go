package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/validator"
)

// RankingService serves the read side built on refreshed channel stats
// and the chronological feed.
type RankingService struct {
	reviews repository.ReviewRepository
	stats   repository.ChannelStatsRepository
	cache   repository.RankingCache
	logger  *slog.Logger
}

// NewRankingService creates a ranking service. cache may be nil.
func NewRankingService(reviews repository.ReviewRepository, stats repository.ChannelStatsRepository, cache repository.RankingCache, logger *slog.Logger) *RankingService {
	return &RankingService{reviews: reviews, stats: stats, cache: cache, logger: logger}
}

// GetRanking returns up to limit channels ordered by recent reviews, then
// average rating, then review count. Channels without reviews never rank.
func (s *RankingService) GetRanking(ctx context.Context, limit int) ([]domain.ChannelStats, error) {
	if limit < 1 || limit > domain.RankingLimitMax {
		return nil, apperrors.Validation(map[string]string{
			"limit": fmt.Sprintf("must be between 1 and %d", domain.RankingLimitMax),
		})
	}

	var (
		generation int64
		fill       bool
	)
	if s.cache != nil {
		cached, gen, ok, err := s.cache.Get(ctx, limit)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "ranking cache read failed", slog.String("error", err.Error()))
		case ok:
			return cached, nil
		default:
			generation, fill = gen, true
		}
	}

	ranking, err := s.stats.ListRanking(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list ranking: %w", err)
	}
	if ranking == nil {
		ranking = []domain.ChannelStats{}
	}

	if fill {
		if err := s.cache.Set(ctx, generation, limit, ranking); err != nil {
			s.logger.WarnContext(ctx, "ranking cache write failed", slog.String("error", err.Error()))
		}
	}
	return ranking, nil
}

// GetRecentReviews returns one page of live reviews newest first. A page
// past the end is empty, not an error.
func (s *RankingService) GetRecentReviews(ctx context.Context, page pagination.Params) ([]domain.FeedItem, int, error) {
	if err := page.Validate(); err != nil {
		return nil, 0, err
	}
	items, total, err := s.reviews.ListRecent(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list recent reviews: %w", err)
	}
	if items == nil {
		items = []domain.FeedItem{}
	}
	return items, total, nil
}

// GetChannelStats returns the last refreshed aggregate for one channel.
func (s *RankingService) GetChannelStats(ctx context.Context, channelID string) (*domain.ChannelStats, error) {
	if !validator.IsChannelID(channelID) {
		return nil, apperrors.Validation(map[string]string{"channel_id": "must be a valid channel id"})
	}
	cs, err := s.stats.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, passOrWrap("get channel stats", err)
	}
	return cs, nil
}

// LastRefresh reports the most recent completed stats refresh.
func (s *RankingService) LastRefresh(ctx context.Context) (*domain.StatsRefresh, error) {
	ref, err := s.stats.LastRefresh(ctx)
	if err != nil {
		return nil, passOrWrap("last stats refresh", err)
	}
	return ref, nil
}
