package measure

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSnapshot is returned by Validate. A snapshot that fails
// validation must not be persisted at all.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is one persisted, timestamped measurement record and the unit
// analytics operate on.
type Snapshot struct {
	ID                      string    `json:"id"`
	Timestamp               time.Time `json:"timestamp"`
	Length                  *float64  `json:"length,omitempty"`
	Girth                   *float64  `json:"girth,omitempty"`
	Confidence              *float64  `json:"confidence,omitempty"`
	ReferenceObjectDetected bool      `json:"reference_object_detected"`
	Notes                   string    `json:"notes,omitempty"`
	PhotoRef                string    `json:"photo_ref,omitempty"`
}

// NewSnapshot stamps a new snapshot with a fresh ID and timestamp. The
// timestamp is taken once here and never changed afterwards.
func NewSnapshot(now time.Time, length, girth *float64) Snapshot {
	return Snapshot{
		ID:        uuid.New().String(),
		Timestamp: now.UTC(),
		Length:    length,
		Girth:     girth,
	}
}

// HasMeasurement reports whether at least one axis was measured.
func (s Snapshot) HasMeasurement() bool {
	return s.Length != nil || s.Girth != nil
}

// Axis returns the value of the given kind, if present. Area is not
// tracked on snapshots.
func (s Snapshot) Axis(k Kind) (float64, bool) {
	switch k {
	case Length:
		if s.Length != nil {
			return *s.Length, true
		}
	case Girth:
		if s.Girth != nil {
			return *s.Girth, true
		}
	}
	return 0, false
}

// Validate checks that the snapshot is complete enough to save.
func (s Snapshot) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSnapshot)
	}
	if !s.HasMeasurement() {
		return fmt.Errorf("%w: length or girth is required", ErrInvalidSnapshot)
	}
	if err := checkMagnitude("length", s.Length); err != nil {
		return err
	}
	if err := checkMagnitude("girth", s.Girth); err != nil {
		return err
	}
	if s.Confidence != nil {
		c := *s.Confidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return fmt.Errorf("%w: confidence must be within [0,1], got %g", ErrInvalidSnapshot, c)
		}
	}
	return nil
}

func checkMagnitude(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return fmt.Errorf("%w: %s must be a positive number, got %g", ErrInvalidSnapshot, name, *v)
	}
	return nil
}
