// Package store defines the persistence collaborators: a record store for
// snapshots and a key-value store for goals, achievements and settings.
//
// Failures are wrapped in ErrStorageFailure and surfaced to the caller. No
// call is retried.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/progress.report/internal/measure"
)

var (
	// ErrStorageFailure wraps any error from the underlying store.
	ErrStorageFailure = errors.New("storage failure")

	// ErrNotFound is returned when deleting a record that does not exist.
	ErrNotFound = errors.New("record not found")
)

// Well-known key-value keys.
const (
	KeyGoals        = "goals"
	KeyAchievements = "achievements"
	KeySettings     = "settings"
)

// RecordStore persists snapshots.
type RecordStore interface {
	Save(ctx context.Context, s measure.Snapshot) (string, error)
	GetAll(ctx context.Context) ([]measure.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// KVStore persists opaque blobs by key.
type KVStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Failure wraps err as a storage failure for op.
func Failure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// GetJSON decodes the value at key into v. It reports false, leaving v
// untouched, when the key is absent.
func GetJSON(ctx context.Context, kv KVStore, key string, v interface{}) (bool, error) {
	b, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, Failure("decode "+key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, kv KVStore, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return kv.Set(ctx, key, b)
}
