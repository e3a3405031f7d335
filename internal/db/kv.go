package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/banshee-data/progress.report/internal/store"
)

// KVStore persists blobs in the kv table.
type KVStore struct {
	db *sql.DB
}

// NewKVStore returns a KVStore over db.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db.DB}
}

var _ store.KVStore = (*KVStore)(nil)

// Get implements store.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.Failure("get "+key, err)
	}
	return v, true, nil
}

// Set implements store.KVStore.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return store.Failure("set "+key, err)
	}
	return nil
}

// Keys lists every stored key in sorted order.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, store.Failure("list keys", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, store.Failure("scan key", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("list keys", err)
	}
	return keys, nil
}
