package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
)

// HelpfulVoteRepository keeps helpful_votes and reviews.helpful_count in
// step inside one transaction.
type HelpfulVoteRepository struct {
	pool database.TxBeginner
}

func NewHelpfulVoteRepository(pool database.TxBeginner) *HelpfulVoteRepository {
	return &HelpfulVoteRepository{pool: pool}
}

// Toggle flips the voter's vote and moves the counter by one. The review
// row is locked first so toggles on one review apply one at a time and
// every one of them lands in the final count.
func (r *HelpfulVoteRepository) Toggle(ctx context.Context, reviewID, voterID string) (result *domain.HelpfulToggle, err error) {
	if _, err := uuid.Parse(reviewID); err != nil {
		return nil, domain.ReviewNotFound(reviewID)
	}

	ctx, end := database.TraceQuery(ctx, "HelpfulVoteRepository.Toggle", "toggle helpful vote")
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx,
			`SELECT helpful_count FROM reviews WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
			reviewID,
		).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ReviewNotFound(reviewID)
			}
			return fmt.Errorf("lock review: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM helpful_votes WHERE review_id = $1 AND voter_id = $2`,
			reviewID, voterID,
		)
		if err != nil {
			return fmt.Errorf("remove helpful vote: %w", err)
		}

		delta, helpful := -1, false
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO helpful_votes (review_id, voter_id) VALUES ($1, $2)`,
				reviewID, voterID,
			); err != nil {
				return fmt.Errorf("add helpful vote: %w", err)
			}
			delta, helpful = 1, true
		}

		var count int
		if err := tx.QueryRow(ctx,
			`UPDATE reviews SET helpful_count = helpful_count + $2 WHERE id = $1 RETURNING helpful_count`,
			reviewID, delta,
		).Scan(&count); err != nil {
			return fmt.Errorf("update helpful count: %w", err)
		}

		result = &domain.HelpfulToggle{ReviewID: reviewID, IsHelpful: helpful, HelpfulCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *HelpfulVoteRepository) HasVoted(ctx context.Context, reviewID, voterID string) (bool, error) {
	if _, err := uuid.Parse(reviewID); err != nil {
		return false, nil
	}
	var voted bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM helpful_votes WHERE review_id = $1 AND voter_id = $2)`,
		reviewID, voterID,
	).Scan(&voted)
	if err != nil {
		return false, fmt.Errorf("check helpful vote: %w", err)
	}
	return voted, nil
}
