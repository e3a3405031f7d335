package calibration

import "fmt"

// Axis identifies which tracked dimension a scale applies to.
type Axis string

const (
	AxisLength Axis = "length"
	AxisGirth  Axis = "girth"
)

// Calibration holds at most one scale per axis.
// The zero value is uncalibrated on both axes.
type Calibration struct {
	Length *Scale `json:"length,omitempty"`
	Girth  *Scale `json:"girth,omitempty"`
}

// Set stores s for axis, replacing any previous scale.
func (c *Calibration) Set(axis Axis, s Scale) {
	switch axis {
	case AxisLength:
		c.Length = &s
	case AxisGirth:
		c.Girth = &s
	}
}

// Reset clears the scale for axis.
func (c *Calibration) Reset(axis Axis) {
	switch axis {
	case AxisLength:
		c.Length = nil
	case AxisGirth:
		c.Girth = nil
	}
}

// For returns the scale for axis, or ErrUncalibrated.
func (c *Calibration) For(axis Axis) (Scale, error) {
	var s *Scale
	switch axis {
	case AxisLength:
		s = c.Length
	case AxisGirth:
		s = c.Girth
	}
	if s == nil {
		return Scale{}, fmt.Errorf("%w: %s", ErrUncalibrated, axis)
	}
	return *s, nil
}

// Any returns the length scale if set, else the girth scale. Tools that are
// not tied to one axis (area, highlighted outlines) use it.
func (c *Calibration) Any() (Scale, error) {
	if c.Length != nil {
		return *c.Length, nil
	}
	if c.Girth != nil {
		return *c.Girth, nil
	}
	return Scale{}, ErrUncalibrated
}

// Assumed reports whether any stored scale came from the assumed baseline.
func (c *Calibration) Assumed() bool {
	return (c.Length != nil && c.Length.Assumed) || (c.Girth != nil && c.Girth.Assumed)
}
