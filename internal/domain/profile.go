package domain

import "time"

// Profile carries an author's display fields. Identity itself is owned by
// the external auth backend; the id is the token subject.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
