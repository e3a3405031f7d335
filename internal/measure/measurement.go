// Package measure defines the measurement records produced by the
// annotation engine and the snapshots persisted for analytics.
//
// All magnitudes are canonical centimetres (cm² for areas).
package measure

import (
	"fmt"

	"github.com/banshee-data/progress.report/internal/geometry"
)

// Kind is the tracked quantity a measurement or goal refers to.
type Kind string

const (
	Length Kind = "length"
	Girth  Kind = "girth"
	Area   Kind = "area"
)

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Length, Girth, Area:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown measurement kind %q", s)
}

// ReferencePoints marks where a known-size reference object sits on the
// photo. At most one point per axis.
type ReferencePoints struct {
	Length *geometry.Point `json:"length,omitempty"`
	Girth  *geometry.Point `json:"girth,omitempty"`
}

// Count returns how many reference points are set.
func (r ReferencePoints) Count() int {
	n := 0
	if r.Length != nil {
		n++
	}
	if r.Girth != nil {
		n++
	}
	return n
}

// Values holds the physical results of a manual measurement.
type Values struct {
	Length *float64 `json:"length,omitempty"`
	Girth  *float64 `json:"girth,omitempty"`
	Area   *float64 `json:"area,omitempty"`
}

// ManualMeasurement is produced when a two-click gesture completes.
// It is treated as immutable: edits produce a new record.
type ManualMeasurement struct {
	Kind         Kind            `json:"type"`
	Start        geometry.Point  `json:"start_point"`
	End          *geometry.Point `json:"end_point,omitempty"`
	Center       *geometry.Point `json:"center_point,omitempty"`
	Radius       *float64        `json:"radius,omitempty"`
	PixelLength  float64         `json:"pixel_length"`
	Values       Values          `json:"values"`
	AssumedScale bool            `json:"assumed_scale"`
}

// Value returns the physical magnitude matching the measurement's kind.
func (m ManualMeasurement) Value() (float64, bool) {
	var v *float64
	switch m.Kind {
	case Length:
		v = m.Values.Length
	case Girth:
		v = m.Values.Girth
	case Area:
		v = m.Values.Area
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}
