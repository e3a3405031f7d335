package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/store"
)

// RecordStore persists snapshots in the snapshots table.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore returns a RecordStore over db.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db.DB}
}

var _ store.RecordStore = (*RecordStore)(nil)

// Save inserts s, replacing any snapshot with the same ID.
func (s *RecordStore) Save(ctx context.Context, snap measure.Snapshot) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (
			snapshot_id, timestamp_unix_nanos, length_cm, girth_cm, confidence,
			reference_object_detected, notes, photo_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id) DO UPDATE SET
			timestamp_unix_nanos = excluded.timestamp_unix_nanos,
			length_cm = excluded.length_cm,
			girth_cm = excluded.girth_cm,
			confidence = excluded.confidence,
			reference_object_detected = excluded.reference_object_detected,
			notes = excluded.notes,
			photo_ref = excluded.photo_ref`,
		snap.ID, snap.Timestamp.UnixNano(), nullFloat(snap.Length), nullFloat(snap.Girth),
		nullFloat(snap.Confidence), snap.ReferenceObjectDetected, snap.Notes, snap.PhotoRef,
	)
	if err != nil {
		return "", store.Failure("save snapshot", err)
	}
	return snap.ID, nil
}

// GetAll returns every snapshot in timestamp order.
func (s *RecordStore) GetAll(ctx context.Context) ([]measure.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, timestamp_unix_nanos, length_cm, girth_cm, confidence,
		       reference_object_detected, notes, photo_ref
		FROM snapshots
		ORDER BY timestamp_unix_nanos ASC, created_at ASC`)
	if err != nil {
		return nil, store.Failure("query snapshots", err)
	}
	defer rows.Close()

	out := []measure.Snapshot{}
	for rows.Next() {
		var (
			snap                measure.Snapshot
			ts                  int64
			length, girth, conf sql.NullFloat64
		)
		if err := rows.Scan(&snap.ID, &ts, &length, &girth, &conf,
			&snap.ReferenceObjectDetected, &snap.Notes, &snap.PhotoRef); err != nil {
			return nil, store.Failure("scan snapshot", err)
		}
		snap.Timestamp = time.Unix(0, ts).UTC()
		snap.Length = floatPtr(length)
		snap.Girth = floatPtr(girth)
		snap.Confidence = floatPtr(conf)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate snapshots", err)
	}
	return out, nil
}

// Delete removes the snapshot with id. Unknown ids yield store.ErrNotFound.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_id = ?`, id)
	if err != nil {
		return store.Failure("delete snapshot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Failure("delete snapshot", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
