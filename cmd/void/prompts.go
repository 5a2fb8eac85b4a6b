package main

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// accessible reports whether prompts should fall back to plain line
// input, as they must when stdin is piped.
func accessible() bool {
	return !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).
		WithAccessible(accessible()).
		Run()
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(label + " is required")
		}
		return nil
	}
}

func promptInput(title string, value *string) error {
	return runForm(huh.NewInput().Title(title).Value(value).Validate(required(strings.TrimSuffix(title, ":"))))
}

func promptCredentials(identifier, password *string) error {
	return runForm(
		huh.NewInput().Title("Email or Username:").Value(identifier).Validate(required("Email or Username")),
		huh.NewInput().Title("Password:").EchoMode(huh.EchoModePassword).Value(password).Validate(required("Password")),
	)
}

func promptSelect(title string, options []huh.Option[string], value *string) error {
	return runForm(huh.NewSelect[string]().Title(title).Options(options...).Value(value))
}
