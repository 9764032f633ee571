package domain

import "time"

// HelpfulVote marks a review as helpful for one voter. The pair
// (ReviewID, VoterID) is unique.
type HelpfulVote struct {
	ReviewID  string    `json:"review_id"`
	VoterID   string    `json:"voter_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HelpfulToggle is the authoritative state after a toggle. Clients replace
// any optimistic state they rendered with it.
type HelpfulToggle struct {
	ReviewID     string `json:"review_id"`
	IsHelpful    bool   `json:"is_helpful"`
	HelpfulCount int    `json:"helpful_count"`
}
