package stream

import (
	"errors"
	"fmt"

	"github.com/hashfydr/void-CLI/internal/store"
)

var (
	// ErrExhausted is returned by Pager.Next once a short page has been
	// seen. No further store reads happen for the pager.
	ErrExhausted = errors.New("no more messages")

	// ErrLimitReached is returned by Pager.Next once the fetch ceiling is
	// reached.
	ErrLimitReached = errors.New("message limit reached")

	// ErrThrottled rejects a submission that exceeds the submit rate.
	ErrThrottled = errors.New("sending too fast, slow down")
)

// FetchFailure reports a failed page or subscription read. The pager
// cursor is left untouched so the same read can be retried.
type FetchFailure struct {
	Scope store.Scope
	Err   error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Scope, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// WriteFailure reports a failed submission. Nothing is rendered for it.
type WriteFailure struct {
	Scope store.Scope
	Err   error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("write %s: %v", e.Scope, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }

// AuthRequiredFailure is returned before a session starts when no user is
// signed in.
type AuthRequiredFailure struct {
	Err error
}

func (e *AuthRequiredFailure) Error() string {
	if e.Err == nil {
		return "authentication required"
	}
	return fmt.Sprintf("authentication required: %v", e.Err)
}

func (e *AuthRequiredFailure) Unwrap() error { return e.Err }
