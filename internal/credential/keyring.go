package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName = "workpresence"

	// TokenKey is the keyring entry holding the API bearer token.
	TokenKey = "api-token"

	// TokenEnv overrides the keyring when set.
	TokenEnv = "WORKPRESENCE_TOKEN"
)

// ErrNoToken is returned when neither the environment nor the keyring
// holds a bearer token.
var ErrNoToken = errors.New("no API token: sign in first")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/workpresence/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("workpresence-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// TokenSource resolves the bearer token on every call, so a token rotated
// by the external sign-in flow is picked up without a restart.
// Precedence: environment variable, then keyring.
type TokenSource struct {
	// Lookup reads a keyring entry. Defaults to Get.
	Lookup func(key string) (string, error)
}

// Token implements api.TokenSource.
func (s TokenSource) Token() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok, nil
	}

	lookup := s.Lookup
	if lookup == nil {
		lookup = Get
	}

	tok, err := lookup(TokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoToken
		}
		return "", err
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}
