package domain

import "time"

// Channel is the display record of a video channel known to the service.
type Channel struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChannelStats is the periodically recomputed aggregate for one channel.
// It is derived from live reviews and never written by user actions.
type ChannelStats struct {
	ChannelID         string    `json:"channel_id"`
	ChannelTitle      string    `json:"channel_title"`
	ThumbnailURL      *string   `json:"thumbnail_url,omitempty"`
	ReviewCount       int       `json:"review_count"`
	AverageRating     float64   `json:"average_rating"`
	RecentReviewCount int       `json:"recent_review_count"`
	RefreshedAt       time.Time `json:"refreshed_at"`
}

// RanksAbove orders stats by recent activity, then rating, then volume,
// falling back to channel id so the order is total.
func (s ChannelStats) RanksAbove(o ChannelStats) bool {
	if s.RecentReviewCount != o.RecentReviewCount {
		return s.RecentReviewCount > o.RecentReviewCount
	}
	if s.AverageRating != o.AverageRating {
		return s.AverageRating > o.AverageRating
	}
	if s.ReviewCount != o.ReviewCount {
		return s.ReviewCount > o.ReviewCount
	}
	return s.ChannelID < o.ChannelID
}

// StatsRefresh records one completed recompute of ChannelStats.
type StatsRefresh struct {
	RefreshedAt  time.Time     `json:"refreshed_at"`
	ChannelCount int           `json:"channel_count"`
	Window       time.Duration `json:"-"`
	Attempts     int           `json:"attempts,omitempty"`
}

// RankingLimitMax bounds getRanking results.
const RankingLimitMax = 50
