// void - terminal client for the campus feed and chatroom
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"

	"github.com/hashfydr/void-CLI/internal/auth"
	"github.com/hashfydr/void-CLI/internal/stream"
)

func main() {
	// Sessions end cleanly on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	if errors.Is(err, huh.ErrUserAborted) {
		os.Exit(130)
	}
	var authErr *stream.AuthRequiredFailure
	if errors.As(err, &authErr) || errors.Is(err, auth.ErrAuthRequired) {
		fmt.Fprintln(os.Stderr, "You are not logged in. Run 'void login' first.")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
