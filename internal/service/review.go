package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/validator"
)

// EventPublisher publishes review lifecycle events. Failures never fail
// the operation that triggered them.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, r *domain.Review) error
	PublishReviewUpdated(ctx context.Context, r *domain.Review) error
	PublishReviewDeleted(ctx context.Context, r *domain.Review, at time.Time) error
	PublishHelpfulToggled(ctx context.Context, t *domain.HelpfulToggle, voterID string) error
	PublishStatsRefreshed(ctx context.Context, r *domain.StatsRefresh) error
}

// ReviewInput is a raw review submission. Pointer fields distinguish a
// missing value from a zero value.
type ReviewInput struct {
	ChannelID string  `json:"channel_id" validate:"required,channel_id"`
	Rating    *int    `json:"rating" validate:"required,min=1,max=5"`
	Title     *string `json:"title" validate:"omitempty,max=100"`
	Content   string  `json:"content" validate:"required,min=50,max=2000"`
	IsSpoiler *bool   `json:"is_spoiler"`
}

// ReviewListResult contains a page of a channel's reviews and the live
// summary over all of them.
type ReviewListResult struct {
	Reviews    []domain.Review       `json:"reviews"`
	Summary    *domain.ReviewSummary `json:"summary"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PerPage    int                   `json:"per_page"`
	TotalPages int                   `json:"total_pages"`
}

// ReviewOptions toggles policy decisions left to deployment.
type ReviewOptions struct {
	AllowSelfVote bool
}

// ReviewService implements the review write path and per-review reads.
type ReviewService struct {
	reviews  repository.ReviewRepository
	votes    repository.HelpfulVoteRepository
	channels *ChannelResolver
	producer EventPublisher
	opts     ReviewOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	votes repository.HelpfulVoteRepository,
	channels *ChannelResolver,
	producer EventPublisher,
	opts ReviewOptions,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		votes:    votes,
		channels: channels,
		producer: producer,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks in and returns the normalized payload. Every failing
// field is reported, one message per field. It has no side effects.
func (s *ReviewService) Validate(in *ReviewInput) (*domain.ReviewPayload, error) {
	if in == nil {
		in = &ReviewInput{}
	}
	norm := *in
	norm.ChannelID = strings.TrimSpace(norm.ChannelID)
	norm.Content = strings.TrimSpace(norm.Content)
	if norm.Title != nil {
		t := strings.TrimSpace(*norm.Title)
		norm.Title = &t
		if t == "" {
			norm.Title = nil
		}
	}

	if err := validator.Validate(&norm); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			return nil, apperrors.Validation(ve.Fields())
		}
		return nil, fmt.Errorf("validate review: %w", err)
	}

	p := &domain.ReviewPayload{
		ChannelID: norm.ChannelID,
		Rating:    *norm.Rating,
		Title:     norm.Title,
		Content:   norm.Content,
	}
	if norm.IsSpoiler != nil {
		p.IsSpoiler = *norm.IsSpoiler
	}
	return p, nil
}

// Submit creates userID's review of the payload's channel. The store's
// unique index decides between concurrent submissions; the loser gets a
// DUPLICATE_REVIEW error.
func (s *ReviewService) Submit(ctx context.Context, userID string, p *domain.ReviewPayload) (*domain.Review, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if _, err := s.channels.Ensure(ctx, p.ChannelID); err != nil {
		return nil, err
	}

	now := s.now()
	review := &domain.Review{
		ID:        uuid.New().String(),
		UserID:    userID,
		ChannelID: p.ChannelID,
		CreatedAt: now,
	}
	review.Apply(p, now)

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, passOrWrap("create review", err)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("channel_id", review.ChannelID),
		slog.String("user_id", review.UserID),
		slog.Int("rating", review.Rating),
	)
	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return review, nil
}

// Update overwrites the editable fields of userID's own review. Ownership
// is checked before the payload so non-owners learn nothing beyond
// FORBIDDEN. The channel of a review cannot change.
func (s *ReviewService) Update(ctx context.Context, userID, reviewID string, in *ReviewInput) (*domain.Review, error) {
	review, err := s.ownedReview(ctx, userID, reviewID)
	if err != nil {
		return nil, err
	}

	if in == nil {
		in = &ReviewInput{}
	}
	scoped := *in
	scoped.ChannelID = review.ChannelID
	p, err := s.Validate(&scoped)
	if err != nil {
		return nil, err
	}

	review.Apply(p, s.now())
	if err := s.reviews.Update(ctx, review); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Deleted between the ownership check and the write.
			return nil, domain.ReviewForbidden()
		}
		return nil, passOrWrap("update review", err)
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("user_id", userID),
	)
	if err := s.producer.PublishReviewUpdated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.updated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return review, nil
}

// Delete soft-deletes userID's own review, freeing the (user, channel)
// slot for a new submission.
func (s *ReviewService) Delete(ctx context.Context, userID, reviewID string) error {
	review, err := s.ownedReview(ctx, userID, reviewID)
	if err != nil {
		return err
	}

	at := s.now()
	if err := s.reviews.SoftDelete(ctx, review.ID, userID, at); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ReviewForbidden()
		}
		return passOrWrap("delete review", err)
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", review.ID),
		slog.String("user_id", userID),
	)
	if err := s.producer.PublishReviewDeleted(ctx, review, at); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.deleted event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *ReviewService) ownedReview(ctx context.Context, userID, reviewID string) (*domain.Review, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ReviewForbidden()
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	if !review.EditableBy(userID) {
		return nil, domain.ReviewForbidden()
	}
	return review, nil
}

// ToggleHelpful flips voterID's helpful mark on a live review and returns
// the stored state after the flip.
func (s *ReviewService) ToggleHelpful(ctx context.Context, voterID, reviewID string) (*domain.HelpfulToggle, error) {
	if voterID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if !s.opts.AllowSelfVote {
		review, err := s.liveReview(ctx, reviewID)
		if err != nil {
			return nil, err
		}
		if review.UserID == voterID {
			return nil, domain.SelfVoteForbidden()
		}
	}

	res, err := s.votes.Toggle(ctx, reviewID, voterID)
	if err != nil {
		return nil, passOrWrap("toggle helpful", err)
	}

	s.logger.DebugContext(ctx, "helpful vote toggled",
		slog.String("review_id", reviewID),
		slog.String("voter_id", voterID),
		slog.Bool("is_helpful", res.IsHelpful),
		slog.Int("helpful_count", res.HelpfulCount),
	)
	if err := s.producer.PublishHelpfulToggled(ctx, res, voterID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.helpful_toggled event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}
	return res, nil
}

// GetReview returns a live review and whether viewerID marked it helpful.
// viewerID may be empty for anonymous readers.
func (s *ReviewService) GetReview(ctx context.Context, reviewID, viewerID string) (*domain.ReviewView, error) {
	review, err := s.liveReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	view := &domain.ReviewView{Review: *review}
	if viewerID != "" {
		voted, err := s.votes.HasVoted(ctx, reviewID, viewerID)
		if err != nil {
			return nil, fmt.Errorf("check helpful vote: %w", err)
		}
		view.IsHelpful = voted
	}
	return view, nil
}

func (s *ReviewService) liveReview(ctx context.Context, reviewID string) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, passOrWrap("get review", err)
	}
	if review.IsDeleted() {
		return nil, domain.ReviewNotFound(reviewID)
	}
	return review, nil
}

// ListChannelReviews returns live reviews of a channel newest first along
// with the channel's live rating summary.
func (s *ReviewService) ListChannelReviews(ctx context.Context, channelID string, page pagination.Params) (*ReviewListResult, error) {
	if !validator.IsChannelID(channelID) {
		return nil, apperrors.Validation(map[string]string{"channel_id": "must be a valid channel id"})
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	reviews, total, err := s.reviews.ListByChannelID(ctx, channelID, page)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	summary, err := s.reviews.GetSummary(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}

	totalPages := total / page.PerPage
	if total%page.PerPage > 0 {
		totalPages++
	}
	return &ReviewListResult{
		Reviews:    reviews,
		Summary:    summary,
		TotalCount: total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: totalPages,
	}, nil
}

// passOrWrap returns application errors unchanged so their status and
// code survive, and wraps anything else.
func passOrWrap(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
