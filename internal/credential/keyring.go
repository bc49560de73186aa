// Package credential stores server-side secrets in the OS keyring so they
// never have to live in the config file.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "agency-dashboard"

// Keyring item keys.
const (
	KeyHostedDatabaseURL = "hosted-database-url"
	KeyIngestAPIKey      = "ingest-api-key"
	KeyJWTSecret         = "auth-jwt-secret"
)

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
		FileDir:                  "~/.config/agency-dashboard/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("agency-dashboard-file-key"),
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

// Lookup is Get for optional secrets: a key that was never stored yields
// ("", nil).
func Lookup(key string) (string, error) {
	v, err := Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "agency-dashboard " + key,
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

// Resolver fills secrets that the configuration left empty.
type Resolver func(key string) (string, error)

// Fallback returns value when set, otherwise the keyring entry for key.
func Fallback(value, key string, lookup Resolver) (string, error) {
	if value != "" {
		return value, nil
	}
	if lookup == nil {
		lookup = Lookup
	}
	return lookup(key)
}
