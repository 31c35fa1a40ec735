package cliutil

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// PasswordEnv names the environment variable holding the SSH password.
const PasswordEnv = "AX26_SSH_PASSWORD"

// SSHPassword returns the SSH password from PasswordEnv, or prompts for it
// when stdin is a terminal.
func SSHPassword(user, host string) (string, error) {
	if pass := os.Getenv(PasswordEnv); pass != "" {
		return pass, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New(PasswordEnv + " is not set and stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "%s@%s's password: ", user, host)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pass), nil
}
