package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
)

// --- Mock Repositories ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Update(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepository) SoftDelete(ctx context.Context, id, userID string, at time.Time) error {
	return m.Called(ctx, id, userID, at).Error(0)
}

func (m *mockReviewRepository) ListByChannelID(ctx context.Context, channelID string, p pagination.Params) ([]domain.Review, int, error) {
	args := m.Called(ctx, channelID, p)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) ListRecent(ctx context.Context, p pagination.Params) ([]domain.FeedItem, int, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]domain.FeedItem), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) GetSummary(ctx context.Context, channelID string) (*domain.ReviewSummary, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewSummary), args.Error(1)
}

type mockVoteRepository struct {
	mock.Mock
}

func (m *mockVoteRepository) Toggle(ctx context.Context, reviewID, voterID string) (*domain.HelpfulToggle, error) {
	args := m.Called(ctx, reviewID, voterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HelpfulToggle), args.Error(1)
}

func (m *mockVoteRepository) HasVoted(ctx context.Context, reviewID, voterID string) (bool, error) {
	args := m.Called(ctx, reviewID, voterID)
	return args.Bool(0), args.Error(1)
}

type mockChannelRepository struct {
	mock.Mock
}

func (m *mockChannelRepository) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Channel), args.Error(1)
}

func (m *mockChannelRepository) Upsert(ctx context.Context, ch *domain.Channel) error {
	return m.Called(ctx, ch).Error(0)
}

type mockStatsRepository struct {
	mock.Mock
}

func (m *mockStatsRepository) Refresh(ctx context.Context, asOf time.Time, window time.Duration) (*domain.StatsRefresh, error) {
	args := m.Called(ctx, asOf, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsRefresh), args.Error(1)
}

func (m *mockStatsRepository) ListRanking(ctx context.Context, limit int) ([]domain.ChannelStats, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChannelStats), args.Error(1)
}

func (m *mockStatsRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.ChannelStats, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelStats), args.Error(1)
}

func (m *mockStatsRepository) LastRefresh(ctx context.Context) (*domain.StatsRefresh, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsRefresh), args.Error(1)
}

type mockRankingCache struct {
	mock.Mock
}

func (m *mockRankingCache) Get(ctx context.Context, limit int) ([]domain.ChannelStats, int64, bool, error) {
	args := m.Called(ctx, limit)
	var stats []domain.ChannelStats
	if v := args.Get(0); v != nil {
		stats = v.([]domain.ChannelStats)
	}
	return stats, args.Get(1).(int64), args.Bool(2), args.Error(3)
}

func (m *mockRankingCache) Set(ctx context.Context, generation int64, limit int, stats []domain.ChannelStats) error {
	return m.Called(ctx, generation, limit, stats).Error(0)
}

func (m *mockRankingCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockChannelLookup struct {
	mock.Mock
}

func (m *mockChannelLookup) Lookup(ctx context.Context, channelID string) (*domain.Channel, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Channel), args.Error(1)
}

// --- Event recorder ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) record(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
	return p.err
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingPublisher) PublishReviewCreated(context.Context, *domain.Review) error {
	return p.record("review.created")
}

func (p *recordingPublisher) PublishReviewUpdated(context.Context, *domain.Review) error {
	return p.record("review.updated")
}

func (p *recordingPublisher) PublishReviewDeleted(context.Context, *domain.Review, time.Time) error {
	return p.record("review.deleted")
}

func (p *recordingPublisher) PublishHelpfulToggled(context.Context, *domain.HelpfulToggle, string) error {
	return p.record("review.helpful_toggled")
}

func (p *recordingPublisher) PublishStatsRefreshed(context.Context, *domain.StatsRefresh) error {
	return p.record("channel_stats.refreshed")
}
