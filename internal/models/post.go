package models

import "time"

// Post represents a feed entry.
type Post struct {
	ID        string    `json:"id"` // ULID
	AuthorID  string    `json:"author_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
