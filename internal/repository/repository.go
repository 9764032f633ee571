package repository

import (
	"context"
	"time"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
)

// ReviewRepository persists reviews. Implementations enforce the
// one-live-review-per-(user, channel) rule themselves.
type ReviewRepository interface {
	// Create inserts a review. A second live review for the same user and
	// channel fails with domain.ErrDuplicateReview; an unknown channel
	// fails with a channel NotFound error.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID returns the review even when soft-deleted.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// Update writes the editable fields of a live review owned by
	// review.UserID. Returns NotFound when no such live review exists.
	Update(ctx context.Context, review *domain.Review) error

	// SoftDelete stamps deleted_at on a live review owned by userID.
	SoftDelete(ctx context.Context, id, userID string, at time.Time) error

	// ListByChannelID returns live reviews newest first and the live total.
	ListByChannelID(ctx context.Context, channelID string, page pagination.Params) ([]domain.Review, int, error)

	// ListRecent returns the live chronological feed and the live total. A
	// page past the end yields an empty slice.
	ListRecent(ctx context.Context, page pagination.Params) ([]domain.FeedItem, int, error)

	// GetSummary aggregates live reviews for one channel.
	GetSummary(ctx context.Context, channelID string) (*domain.ReviewSummary, error)
}

// HelpfulVoteRepository owns helpful votes and the review counter derived
// from them.
type HelpfulVoteRepository interface {
	// Toggle adds the vote if absent or removes it if present and moves
	// the review's helpful_count by one in the same atomic unit. A missing
	// or deleted review yields NotFound.
	Toggle(ctx context.Context, reviewID, voterID string) (*domain.HelpfulToggle, error)

	HasVoted(ctx context.Context, reviewID, voterID string) (bool, error)
}

// ProfileRepository stores author display fields shown next to reviews.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.Profile) error
}

// ChannelRepository stores channel display records.
type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	Upsert(ctx context.Context, channel *domain.Channel) error
}

// ChannelStatsRepository owns the derived ChannelStats table.
type ChannelStatsRepository interface {
	// Refresh recomputes every channel's stats from live reviews as of
	// asOf and replaces the whole table at once. Readers see either the
	// previous or the new contents, never a mix.
	Refresh(ctx context.Context, asOf time.Time, window time.Duration) (*domain.StatsRefresh, error)

	// ListRanking returns up to limit channels with at least one review,
	// ordered by recent count, average rating, review count, channel id.
	ListRanking(ctx context.Context, limit int) ([]domain.ChannelStats, error)

	GetByChannelID(ctx context.Context, channelID string) (*domain.ChannelStats, error)

	// LastRefresh returns NotFound until the first refresh completes.
	LastRefresh(ctx context.Context) (*domain.StatsRefresh, error)
}

// RankingCache holds rendered ranking pages between refreshes. Invalidate
// advances a generation counter. Get reports the generation it observed and
// Set stores nothing unless the generation is still the same, so a ranking
// read before a refresh cannot be cached after it.
type RankingCache interface {
	Get(ctx context.Context, limit int) (stats []domain.ChannelStats, generation int64, hit bool, err error)
	Set(ctx context.Context, generation int64, limit int, stats []domain.ChannelStats) error
	Invalidate(ctx context.Context) error
}
