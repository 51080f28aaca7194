// Package credentials keeps API tokens in the system keyring, one entry per
// server URL.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "meetctl"

// ErrNoToken is returned when no token is stored for a server.
var ErrNoToken = errors.New("no token stored")

func normalize(server string) string {
	return strings.TrimRight(strings.TrimSpace(server), "/")
}

func SaveToken(server, token string) error {
	if err := keyring.Set(keyringService, normalize(server), token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	return nil
}

func Token(server string) (string, error) {
	token, err := keyring.Get(keyringService, normalize(server))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token from keyring: %w", err)
	}
	return token, nil
}

func DeleteToken(server string) error {
	err := keyring.Delete(keyringService, normalize(server))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting token from keyring: %w", err)
	}
	return nil
}

// Mask shows only the last four characters of a token.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}
