// Package credential is the durable key-value storage holding the analysis
// API key.
package credential

import (
	"context"
	"errors"
	"strings"

	"textlens/src/apperr"
)

// Key is the storage key of the analysis API credential.
const Key = "groqApiKey"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a small durable key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// APIKey reads the credential. A missing or blank key is a ConfigError.
func APIKey(ctx context.Context, s Store) (string, error) {
	if s == nil {
		return "", apperr.Config("credential not configured")
	}
	v, err := s.Get(ctx, Key)
	if errors.Is(err, ErrNotFound) {
		return "", apperr.Config("credential not configured")
	}
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.Config("credential not configured")
	}
	return v, nil
}

// Configured reports whether a non-blank credential is stored.
func Configured(ctx context.Context, s Store) bool {
	_, err := APIKey(ctx, s)
	return err == nil
}
