package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/pagination"
)

const reviewColumns = `id, user_id, channel_id, rating, title, content, is_spoiler,
		helpful_count, created_at, updated_at, deleted_at`

// ReviewRepository implements review persistence on PostgreSQL. The
// one-live-review rule is the partial unique index
// reviews_user_channel_active_key, so concurrent inserts cannot both win.
type ReviewRepository struct {
	pool database.DBTX
}

func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

func scanReview(row pgx.Row, r *domain.Review, extra ...any) error {
	dest := []any{
		&r.ID, &r.UserID, &r.ChannelID, &r.Rating, &r.Title, &r.Content, &r.IsSpoiler,
		&r.HelpfulCount, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	query := `
		INSERT INTO reviews (id, user_id, channel_id, rating, title, content, is_spoiler,
		                     helpful_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "ReviewRepository.Create", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		review.UserID,
		review.ChannelID,
		review.Rating,
		review.Title,
		review.Content,
		review.IsSpoiler,
		review.HelpfulCount,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		return translateReviewWrite("insert review", err, review.ChannelID)
	}
	return nil
}

// GetByID returns a review, including soft-deleted ones.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ReviewNotFound(id)
	}

	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	var review domain.Review
	if err := scanReview(r.pool.QueryRow(ctx, query, id), &review); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ReviewNotFound(id)
		}
		return nil, fmt.Errorf("get review %s: %w", id, err)
	}
	return &review, nil
}

// Update overwrites the editable fields of a live review owned by
// review.UserID and refreshes the counter and timestamps from the row.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) (err error) {
	query := `
		UPDATE reviews
		SET rating = $3, title = $4, content = $5, is_spoiler = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING helpful_count, created_at`

	ctx, end := database.TraceQuery(ctx, "ReviewRepository.Update", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query,
		review.ID,
		review.UserID,
		review.Rating,
		review.Title,
		review.Content,
		review.IsSpoiler,
		review.UpdatedAt,
	).Scan(&review.HelpfulCount, &review.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReviewNotFound(review.ID)
		}
		return translateReviewWrite("update review", err, review.ChannelID)
	}
	return nil
}

// SoftDelete marks a live review owned by userID as deleted.
func (r *ReviewRepository) SoftDelete(ctx context.Context, id, userID string, at time.Time) error {
	query := `
		UPDATE reviews SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("soft delete review %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ReviewNotFound(id)
	}
	return nil
}

// ListByChannelID returns live reviews for a channel, newest first.
func (r *ReviewRepository) ListByChannelID(ctx context.Context, channelID string, page pagination.Params) ([]domain.Review, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE channel_id = $1 AND deleted_at IS NULL`,
		channelID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count channel reviews: %w", err)
	}
	if page.PastEnd(total) {
		return []domain.Review{}, total, nil
	}

	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE channel_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, channelID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list channel reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := scanReview(rows, &rv); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, total, nil
}

// ListRecent returns the live review feed joined with author and channel
// display fields. Authors without a profile get an empty name.
func (r *ReviewRepository) ListRecent(ctx context.Context, page pagination.Params) (items []domain.FeedItem, total int, err error) {
	query := `
		SELECT r.id, r.user_id, r.channel_id, r.rating, r.title, r.content, r.is_spoiler,
		       r.helpful_count, r.created_at, r.updated_at, r.deleted_at,
		       COALESCE(p.display_name, ''), p.avatar_url, c.title, c.thumbnail_url
		FROM reviews r
		JOIN channels c ON c.id = r.channel_id
		LEFT JOIN profiles p ON p.id = r.user_id
		WHERE r.deleted_at IS NULL
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ReviewRepository.ListRecent", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recent reviews: %w", err)
	}
	if page.PastEnd(total) {
		return []domain.FeedItem{}, total, nil
	}

	rows, err := r.pool.Query(ctx, query, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list recent reviews: %w", err)
	}
	defer rows.Close()

	items = []domain.FeedItem{}
	for rows.Next() {
		var it domain.FeedItem
		if err = scanReview(rows, &it.Review,
			&it.AuthorName, &it.AuthorAvatarURL, &it.ChannelTitle, &it.ChannelThumbnailURL,
		); err != nil {
			return nil, 0, fmt.Errorf("scan feed row: %w", err)
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate feed rows: %w", err)
	}
	return items, total, nil
}

// GetSummary returns the live average rating and count for a channel.
func (r *ReviewRepository) GetSummary(ctx context.Context, channelID string) (*domain.ReviewSummary, error) {
	query := `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM reviews
		WHERE channel_id = $1 AND deleted_at IS NULL`

	var summary domain.ReviewSummary
	if err := r.pool.QueryRow(ctx, query, channelID).Scan(&summary.AverageRating, &summary.TotalCount); err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}
	summary.AverageRating = domain.RoundRating(summary.AverageRating)
	return &summary, nil
}
