package models

import "time"

// Item represents a chat message or a comment in a stream.
type Item struct {
	ID             string    `json:"id"` // ULID, assigned by the store
	Scope          string    `json:"scope"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Pending marks a locally rendered echo that has not been confirmed
	// by the store yet. Pending items have no ID.
	Pending bool `json:"-"`
}

// Newer reports whether it sorts before other in a newest-first stream.
// Ties on timestamp are broken by ID.
func (it Item) Newer(other Item) bool {
	if !it.CreatedAt.Equal(other.CreatedAt) {
		return it.CreatedAt.After(other.CreatedAt)
	}
	return it.ID > other.ID
}
