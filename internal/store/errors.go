package store

import "errors"

var (
	// ErrDuplicate is returned when a unique email or username is taken.
	ErrDuplicate = errors.New("already exists")
	ErrNotFound  = errors.New("not found")

	// ErrCorrupt is returned when an indexed item has no readable document.
	ErrCorrupt = errors.New("item document missing or unreadable")
)
