package models

import (
	"time"
)

// Account represents a registered user.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	VerifyToken  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public part of an account.
type Profile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// DisplayName returns the username, falling back to the account email.
func (p *Profile) DisplayName(email string) string {
	if p == nil || p.Username == "" {
		return email
	}
	return p.Username
}

// Principal is the authenticated user of the running process.
type Principal struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
}
