package postgres

import (
	"context"
	"fmt"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
)

// ProfileRepository stores author display fields.
type ProfileRepository struct {
	pool database.DBTX
}

func NewProfileRepository(pool database.DBTX) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Upsert inserts the profile or refreshes its display fields. CreatedAt is
// set from the stored row.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, display_name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    avatar_url = EXCLUDED.avatar_url
		RETURNING created_at`

	if err := r.pool.QueryRow(ctx, query, p.ID, p.DisplayName, p.AvatarURL).Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}
