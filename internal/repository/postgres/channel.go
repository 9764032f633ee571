package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
)

// ChannelRepository stores channel display records.
type ChannelRepository struct {
	pool database.DBTX
}

func NewChannelRepository(pool database.DBTX) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	query := `
		SELECT id, title, thumbnail_url, created_at, updated_at
		FROM channels
		WHERE id = $1`

	var c domain.Channel
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Title, &c.ThumbnailURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ChannelNotFound(id)
		}
		return nil, fmt.Errorf("get channel %s: %w", id, err)
	}
	return &c, nil
}

// Upsert inserts the channel or refreshes its display fields.
func (r *ChannelRepository) Upsert(ctx context.Context, c *domain.Channel) error {
	query := `
		INSERT INTO channels (id, title, thumbnail_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    thumbnail_url = EXCLUDED.thumbnail_url,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, c.ID, c.Title, c.ThumbnailURL, c.CreatedAt, c.UpdatedAt).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert channel %s: %w", c.ID, err)
	}
	return nil
}
