package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/hashfydr/void-CLI/internal/auth"
	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/feed"
	"github.com/hashfydr/void-CLI/internal/stream"
)

const (
	choiceLogin    = "login"
	choiceSignup   = "signup"
	choiceVerify   = "verify"
	choiceFeed     = "feed"
	choicePost     = "post"
	choiceComments = "comments"
	choiceChat     = "chat"
	choiceLogout   = "logout"
	choiceExit     = "exit"
)

// runMenu is the interactive entry point: a start menu until someone signs
// in, then the main menu until they exit.
func runMenu(ctx context.Context, a *app, args []string) error {
	p := newPrinter(os.Stdout)
	p.Banner()

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, err := a.auth.CurrentUser(ctx)
		signedIn := err == nil

		var choice string
		if signedIn {
			err = promptSelect("What do you want to do?", []huh.Option[string]{
				huh.NewOption("View Feed", choiceFeed),
				huh.NewOption("Create Post", choicePost),
				huh.NewOption("View/Discuss Post Comments", choiceComments),
				huh.NewOption("Chatroom", choiceChat),
				huh.NewOption("Logout", choiceLogout),
				huh.NewOption("Exit", choiceExit),
			}, &choice)
		} else {
			err = promptSelect("Welcome to Void!", []huh.Option[string]{
				huh.NewOption("Login", choiceLogin),
				huh.NewOption("Signup", choiceSignup),
				huh.NewOption("Verify Email", choiceVerify),
				huh.NewOption("Exit", choiceExit),
			}, &choice)
		}
		if isAborted(err) || choice == choiceExit {
			p.OK("Goodbye!")
			return nil
		}
		if err != nil {
			return err
		}

		if err := runChoice(ctx, a, choice); err != nil {
			if isAborted(err) {
				continue
			}
			if !recoverable(err) {
				return err
			}
			p.Fail("%v", err)
		}
	}
}

func runChoice(ctx context.Context, a *app, choice string) error {
	switch choice {
	case choiceLogin:
		return runLogin(ctx, a, nil)
	case choiceSignup:
		return runSignup(ctx, a, nil)
	case choiceVerify:
		return runVerify(ctx, a, nil)
	case choiceFeed:
		return runFeed(ctx, a, nil)
	case choicePost:
		return runPost(ctx, a, nil)
	case choiceComments:
		return runComments(ctx, a, nil)
	case choiceChat:
		return runChat(ctx, a, nil)
	case choiceLogout:
		return runLogout(ctx, a, nil)
	}
	return nil
}

// recoverable reports whether the menu can carry on after err.
func recoverable(err error) bool {
	var (
		fetchErr *stream.FetchFailure
		writeErr *stream.WriteFailure
		authErr  *stream.AuthRequiredFailure
	)
	switch {
	case errors.As(err, &fetchErr), errors.As(err, &writeErr), errors.As(err, &authErr):
		return true
	case errors.Is(err, feed.ErrEmpty),
		errors.Is(err, auth.ErrAuthRequired),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotVerified),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrEmailDomain),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, crypto.ErrWeakPassword):
		return true
	}
	return false
}
