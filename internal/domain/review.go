package domain

import (
	"math"
	"time"
)

// Review is one user's rating and commentary on a channel. A user has at
// most one live (non-deleted) review per channel.
type Review struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	ChannelID    string     `json:"channel_id"`
	Rating       int        `json:"rating"`
	Title        *string    `json:"title,omitempty"`
	Content      string     `json:"content"`
	IsSpoiler    bool       `json:"is_spoiler"`
	HelpfulCount int        `json:"helpful_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

func (r *Review) IsDeleted() bool {
	return r.DeletedAt != nil
}

// EditableBy reports whether userID may update or delete the review.
func (r *Review) EditableBy(userID string) bool {
	return !r.IsDeleted() && userID != "" && r.UserID == userID
}

// Apply overwrites the user-editable fields with p.
func (r *Review) Apply(p *ReviewPayload, at time.Time) {
	r.Rating = p.Rating
	r.Title = p.Title
	r.Content = p.Content
	r.IsSpoiler = p.IsSpoiler
	r.UpdatedAt = at
}

// ReviewPayload is a validated, normalized review submission.
type ReviewPayload struct {
	ChannelID string  `json:"channel_id"`
	Rating    int     `json:"rating"`
	Title     *string `json:"title,omitempty"`
	Content   string  `json:"content"`
	IsSpoiler bool    `json:"is_spoiler"`
}

// ReviewView is a review as seen by a particular viewer.
type ReviewView struct {
	Review
	IsHelpful bool `json:"is_helpful"`
}

// ReviewSummary is the live aggregate over a channel's reviews.
type ReviewSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalCount    int     `json:"total_count"`
}

// FeedItem is a review joined with the author and channel fields needed to
// render it in the recent-reviews feed.
type FeedItem struct {
	Review
	AuthorName          string  `json:"author_name"`
	AuthorAvatarURL     *string `json:"author_avatar_url,omitempty"`
	ChannelTitle        string  `json:"channel_title"`
	ChannelThumbnailURL *string `json:"channel_thumbnail_url,omitempty"`
}

// RoundRating rounds an average rating to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}
