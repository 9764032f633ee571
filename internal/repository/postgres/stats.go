package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
)

// refreshLockKey serialises stats refreshes across service instances.
const refreshLockKey int64 = 0x7475626573746174

const statsColumns = `s.channel_id, c.title, c.thumbnail_url, s.review_count,
		s.average_rating::float8, s.recent_review_count, s.refreshed_at`

// ChannelStatsRepository maintains channel_stats as a full recompute over
// live reviews.
type ChannelStatsRepository struct {
	pool database.TxBeginner
}

func NewChannelStatsRepository(pool database.TxBeginner) *ChannelStatsRepository {
	return &ChannelStatsRepository{pool: pool}
}

// Refresh replaces channel_stats inside one transaction. The aggregate is a
// single INSERT ... SELECT, so it reads one snapshot of reviews, and readers
// see the old table until commit. The transaction is READ COMMITTED so the
// statements after the advisory lock see what the previous holder committed.
// A failed run rolls back and leaves the previous contents in place.
func (r *ChannelStatsRepository) Refresh(ctx context.Context, asOf time.Time, window time.Duration) (result *domain.StatsRefresh, err error) {
	insert := `
		INSERT INTO channel_stats (channel_id, review_count, average_rating, recent_review_count, refreshed_at)
		SELECT channel_id,
		       COUNT(*),
		       ROUND(AVG(rating)::numeric, 1),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       $2
		FROM reviews
		WHERE deleted_at IS NULL
		GROUP BY channel_id`

	ctx, end := database.TraceQuery(ctx, "ChannelStatsRepository.Refresh", insert)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, refreshLockKey); err != nil {
			return fmt.Errorf("acquire refresh lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM channel_stats`); err != nil {
			return fmt.Errorf("clear channel stats: %w", err)
		}
		tag, err := tx.Exec(ctx, insert, asOf.Add(-window), asOf)
		if err != nil {
			return fmt.Errorf("compute channel stats: %w", err)
		}
		channels := int(tag.RowsAffected())
		if _, err := tx.Exec(ctx,
			`INSERT INTO stats_refreshes (refreshed_at, channel_count, window_seconds) VALUES ($1, $2, $3)`,
			asOf, channels, int64(window/time.Second),
		); err != nil {
			return fmt.Errorf("record refresh: %w", err)
		}
		result = &domain.StatsRefresh{RefreshedAt: asOf, ChannelCount: channels, Window: window}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListRanking returns the top channels by the ranking order.
func (r *ChannelStatsRepository) ListRanking(ctx context.Context, limit int) ([]domain.ChannelStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM channel_stats s
		JOIN channels c ON c.id = s.channel_id
		WHERE s.review_count > 0
		ORDER BY s.recent_review_count DESC, s.average_rating DESC, s.review_count DESC, s.channel_id ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list ranking: %w", err)
	}
	defer rows.Close()

	stats := []domain.ChannelStats{}
	for rows.Next() {
		var s domain.ChannelStats
		if err := scanStats(rows, &s); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranking rows: %w", err)
	}
	return stats, nil
}

func (r *ChannelStatsRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.ChannelStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM channel_stats s
		JOIN channels c ON c.id = s.channel_id
		WHERE s.channel_id = $1`

	var s domain.ChannelStats
	if err := scanStats(r.pool.QueryRow(ctx, query, channelID), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ChannelNotFound(channelID)
		}
		return nil, fmt.Errorf("get channel stats %s: %w", channelID, err)
	}
	return &s, nil
}

func (r *ChannelStatsRepository) LastRefresh(ctx context.Context) (*domain.StatsRefresh, error) {
	var (
		ref     domain.StatsRefresh
		seconds int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT refreshed_at, channel_count, window_seconds FROM stats_refreshes ORDER BY id DESC LIMIT 1`,
	).Scan(&ref.RefreshedAt, &ref.ChannelCount, &seconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.StatsNotRefreshed()
		}
		return nil, fmt.Errorf("get last refresh: %w", err)
	}
	ref.Window = time.Duration(seconds) * time.Second
	return &ref, nil
}

func scanStats(row pgx.Row, s *domain.ChannelStats) error {
	return row.Scan(&s.ChannelID, &s.ChannelTitle, &s.ThumbnailURL, &s.ReviewCount,
		&s.AverageRating, &s.RecentReviewCount, &s.RefreshedAt)
}
