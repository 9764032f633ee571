package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	pkgkafka "github.com/shinshin4n4n/tube-review-sub001/pkg/kafka"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/logger"
)

// Aggregate types.
const (
	AggregateReview       = "review"
	AggregateChannelStats = "channel_stats"
)

// Topics published by this service.
var (
	TopicReviewCreated         = pkgkafka.Topic(AggregateReview, "created")
	TopicReviewUpdated         = pkgkafka.Topic(AggregateReview, "updated")
	TopicReviewDeleted         = pkgkafka.Topic(AggregateReview, "deleted")
	TopicReviewHelpfulToggled  = pkgkafka.Topic(AggregateReview, "helpful_toggled")
	TopicChannelStatsRefreshed = pkgkafka.Topic(AggregateChannelStats, "refreshed")
)

// SourceReviewService identifies events from this service.
const SourceReviewService = "review-service"

// ReviewData is the payload for review.created and review.updated.
type ReviewData struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	Rating    int       `json:"rating"`
	IsSpoiler bool      `json:"is_spoiler"`
	At        time.Time `json:"at"`
}

// ReviewDeletedData is the payload for review.deleted.
type ReviewDeletedData struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// HelpfulToggledData is the payload for review.helpful_toggled.
type HelpfulToggledData struct {
	ReviewID     string `json:"review_id"`
	VoterID      string `json:"voter_id"`
	IsHelpful    bool   `json:"is_helpful"`
	HelpfulCount int    `json:"helpful_count"`
}

// StatsRefreshedData is the payload for channel_stats.refreshed.
type StatsRefreshedData struct {
	RefreshedAt   time.Time `json:"refreshed_at"`
	ChannelCount  int       `json:"channel_count"`
	WindowSeconds int64     `json:"window_seconds"`
	Attempts      int       `json:"attempts"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events. A Producer built without a
// Kafka producer drops every event.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer. kafka may be nil when event
// publishing is disabled.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	if kafka == nil {
		return &Producer{logger: logger}
	}
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateType, aggregateID string, data any) error {
	if p.kafka == nil {
		return nil
	}
	ev, err := pkgkafka.NewEvent(eventType, aggregateType, aggregateID, SourceReviewService, data)
	if err != nil {
		return err
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}
	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func reviewData(r *domain.Review, at time.Time) ReviewData {
	return ReviewData{
		ID:        r.ID,
		UserID:    r.UserID,
		ChannelID: r.ChannelID,
		Rating:    r.Rating,
		IsSpoiler: r.IsSpoiler,
		At:        at,
	}
}

func (p *Producer) PublishReviewCreated(ctx context.Context, r *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, "review.created", AggregateReview, r.ID, reviewData(r, r.CreatedAt))
}

func (p *Producer) PublishReviewUpdated(ctx context.Context, r *domain.Review) error {
	return p.publish(ctx, TopicReviewUpdated, "review.updated", AggregateReview, r.ID, reviewData(r, r.UpdatedAt))
}

func (p *Producer) PublishReviewDeleted(ctx context.Context, r *domain.Review, at time.Time) error {
	return p.publish(ctx, TopicReviewDeleted, "review.deleted", AggregateReview, r.ID, ReviewDeletedData{
		ID:        r.ID,
		UserID:    r.UserID,
		ChannelID: r.ChannelID,
		DeletedAt: at,
	})
}

func (p *Producer) PublishHelpfulToggled(ctx context.Context, t *domain.HelpfulToggle, voterID string) error {
	return p.publish(ctx, TopicReviewHelpfulToggled, "review.helpful_toggled", AggregateReview, t.ReviewID, HelpfulToggledData{
		ReviewID:     t.ReviewID,
		VoterID:      voterID,
		IsHelpful:    t.IsHelpful,
		HelpfulCount: t.HelpfulCount,
	})
}

// PublishStatsRefreshed keys the event by refresh time since a refresh
// covers every channel.
func (p *Producer) PublishStatsRefreshed(ctx context.Context, r *domain.StatsRefresh) error {
	return p.publish(ctx, TopicChannelStatsRefreshed, "channel_stats.refreshed", AggregateChannelStats,
		r.RefreshedAt.UTC().Format(time.RFC3339), StatsRefreshedData{
			RefreshedAt:   r.RefreshedAt,
			ChannelCount:  r.ChannelCount,
			WindowSeconds: int64(r.Window / time.Second),
			Attempts:      r.Attempts,
		})
}
