package db

import (
	"path/filepath"
	"testing"
)

// newTestDB opens a migrated database in a temp dir and closes it when the
// test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func floatVal(f float64) *float64 {
	return &f
}
