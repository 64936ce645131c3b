package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// passwordEnvVar is the environment variable checked before prompting
// interactively.
const passwordEnvVar = "PHNX_PASSWORD"

// resolvePassword returns the password bytes to derive the cipher key
// from: PHNX_PASSWORD if set, otherwise a no-echo terminal prompt. It
// fails fast, with a wrapped error, when neither source can supply one
// (e.g. stdin is not a terminal and the environment variable is unset).
func resolvePassword() ([]byte, error) {
	if v, ok := os.LookupEnv(passwordEnvVar); ok {
		if v == "" {
			return nil, fmt.Errorf("%s is set but empty", passwordEnvVar)
		}
		return []byte(v), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("no %s in environment and stdin is not a terminal to prompt on", passwordEnvVar)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password from terminal: %w", err)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("empty password")
	}
	return password, nil
}
