// Package kv is the persistence adapter behind every narraitor store.
// Backends expose a string key-value surface and degrade to no-ops (or
// "absent") when the underlying engine is unavailable: durability never
// blocks or fails the in-memory state of record.
package kv

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// KeyPrefix namespaces every key written by the application.
const KeyPrefix = "narraitor:"

// Store is a generic key-value persistence engine.
type Store interface {
	// GetItem returns the stored value and whether it was present.
	GetItem(ctx context.Context, key string) (string, bool)

	// SetItem stores value under key. Failures are logged, never returned.
	SetItem(ctx context.Context, key, value string)

	// RemoveItem deletes key. Missing keys and failures are ignored.
	RemoveItem(ctx context.Context, key string)

	// Close releases the engine's resources.
	Close() error
}

// SaveJSON encodes v and writes it under key.
func SaveJSON(ctx context.Context, s Store, log zerolog.Logger, key string, v interface{}) {
	if s == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot encode failed")
		return
	}
	s.SetItem(ctx, key, string(data))
}

// LoadJSON decodes the value stored under key into v.
// It reports false when the key is absent or cannot be decoded.
func LoadJSON(ctx context.Context, s Store, log zerolog.Logger, key string, v interface{}) bool {
	if s == nil {
		return false
	}
	raw, ok := s.GetItem(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot decode failed")
		return false
	}
	return true
}
