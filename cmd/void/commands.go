package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hashfydr/void-CLI/internal/api"
	"github.com/hashfydr/void-CLI/internal/config"
)

type runFunc func(ctx context.Context, a *app, args []string) error

// withApp wires the services for a command and tears them down after it.
func withApp(run runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, config.Load())
		if err != nil {
			return err
		}
		defer a.close()
		return run(ctx, a, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "void",
		Short:         "Terminal client for the Void feed and chatroom",
		Long:          "Void is a small social feed with a live chatroom and per-post comment threads, used from the terminal.",
		Version:       api.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withApp(runMenu),
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Enter the live chatroom",
			Args:  cobra.NoArgs,
			RunE:  withApp(runChat),
		},
		&cobra.Command{
			Use:   "comments [post_id]",
			Short: "Discuss a post in its live comment thread",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withApp(runComments),
		},
		&cobra.Command{
			Use:   "feed",
			Short: "Print all posts with their comments",
			Args:  cobra.NoArgs,
			RunE:  withApp(runFeed),
		},
		&cobra.Command{
			Use:   "post [message...]",
			Short: "Publish a post",
			RunE:  withApp(runPost),
		},
		&cobra.Command{
			Use:   "comment <post_id> <message...>",
			Short: "Add a single comment to a post",
			Args:  cobra.MinimumNArgs(2),
			RunE:  withApp(runComment),
		},
		&cobra.Command{
			Use:   "signup",
			Short: "Create an account",
			Args:  cobra.NoArgs,
			RunE:  withApp(runSignup),
		},
		&cobra.Command{
			Use:   "verify [email_or_username] [code]",
			Short: "Confirm an account with its verification code",
			Args:  cobra.MaximumNArgs(2),
			RunE:  withApp(runVerify),
		},
		&cobra.Command{
			Use:   "login",
			Short: "Sign in",
			Args:  cobra.NoArgs,
			RunE:  withApp(runLogin),
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Sign out",
			Args:  cobra.NoArgs,
			RunE:  withApp(runLogout),
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Show the signed-in user",
			Args:  cobra.NoArgs,
			RunE:  withApp(runWhoami),
		},
	)

	return root
}

func runChat(ctx context.Context, a *app, args []string) error {
	return a.engine.RunChatSession(ctx)
}

func runComments(ctx context.Context, a *app, args []string) error {
	var postID string
	if len(args) == 1 {
		postID = args[0]
	} else {
		id, err := pickPost(ctx, a)
		if err != nil || id == "" {
			return err
		}
		postID = id
	}
	return a.engine.RunCommentSession(ctx, postID)
}

// pickPost asks which post to discuss; it returns "" when there are none.
func pickPost(ctx context.Context, a *app) (string, error) {
	posts, err := a.feed.Posts(ctx)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		newPrinter(os.Stdout).Warn("There are no posts to discuss.")
		return "", nil
	}
	options := make([]huh.Option[string], len(posts))
	for i, p := range posts {
		options[i] = huh.NewOption(postLabel(i, p), p.ID)
	}
	var postID string
	if err := promptSelect("Which post do you want to discuss?", options, &postID); err != nil {
		return "", err
	}
	return postID, nil
}

func runFeed(ctx context.Context, a *app, args []string) error {
	entries, err := a.feed.Feed(ctx)
	if err != nil {
		return err
	}
	newPrinter(os.Stdout).Feed(entries)
	return nil
}

func runPost(ctx context.Context, a *app, args []string) error {
	content := strings.Join(args, " ")
	if strings.TrimSpace(content) == "" {
		if err := promptInput("What do you want to post?", &content); err != nil {
			return err
		}
	}
	post, err := a.feed.CreatePost(ctx, content)
	if err != nil {
		return err
	}
	newPrinter(os.Stdout).OK("Post created: %s", post.ID)
	return nil
}

func runComment(ctx context.Context, a *app, args []string) error {
	item, err := a.feed.CreateComment(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	newPrinter(os.Stdout).OK("Comment added: %s", item.ID)
	return nil
}

func runSignup(ctx context.Context, a *app, args []string) error {
	p := newPrinter(os.Stdout)

	var email, username, password string
	if err := promptInput("Email:", &email); err != nil {
		return err
	}
	for {
		if err := promptInput("Username:", &username); err != nil {
			return err
		}
		ok, err := a.auth.IsUsernameAvailable(ctx, strings.TrimSpace(username))
		if err != nil {
			return err
		}
		if ok {
			break
		}
		p.Fail("Username is already taken. Please try another.")
		username = ""
	}
	if err := runForm(huh.NewInput().Title("Password:").EchoMode(huh.EchoModePassword).Value(&password).Validate(required("Password"))); err != nil {
		return err
	}

	acct, err := a.auth.Signup(ctx, email, password, username)
	if err != nil {
		return err
	}
	p.Warn("A verification code has been issued for %s.", acct.Email)
	if !a.cfg.LogStderr {
		p.Warn("Without a mail relay the code is written to %s.", a.cfg.LogFile())
	}
	p.Warn("Run 'void verify' to confirm your account.")
	return nil
}

func runVerify(ctx context.Context, a *app, args []string) error {
	var identifier, code string
	if len(args) > 0 {
		identifier = args[0]
	} else if err := promptInput("Email or Username:", &identifier); err != nil {
		return err
	}
	if len(args) > 1 {
		code = args[1]
	} else if err := promptInput("Verification code:", &code); err != nil {
		return err
	}

	if err := a.auth.Verify(ctx, identifier, code); err != nil {
		return err
	}
	newPrinter(os.Stdout).OK("Email verified successfully! You can now log in.")
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	var identifier, password string
	if err := promptCredentials(&identifier, &password); err != nil {
		return err
	}
	return login(ctx, a, identifier, password)
}

func login(ctx context.Context, a *app, identifier, password string) error {
	principal, err := a.auth.Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	newPrinter(os.Stdout).OK("Logged in as %s.", principal.Email)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	newPrinter(os.Stdout).OK("Logged out.")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	principal, err := a.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	profile, err := a.auth.Profile(ctx, principal.UserID)
	if err != nil {
		return err
	}
	newPrinter(os.Stdout).OK("%s (%s)", profile.DisplayName(principal.Email), principal.Email)
	return nil
}

// isAborted reports whether the user left a prompt with ctrl+c or esc.
func isAborted(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}
