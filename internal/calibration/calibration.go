// Package calibration converts pixel-space distances into physical
// centimetres using a reference object of known size.
//
// A scale factor is only ever produced from an explicit reference. When the
// caller has no pixel measurement of the reference, the Resolver falls back
// to an assumed pixel baseline; the resulting Scale is flagged Assumed so it
// can be shown as an approximation.
package calibration

import (
	"errors"
	"fmt"
	"math"
)

// DefaultBaselinePixels is the assumed on-screen span of a reference
// gesture when no explicit reference pixel measurement exists.
const DefaultBaselinePixels = 50.0

var (
	// ErrInvalidReference is returned when the reference size or its pixel
	// span cannot produce a usable scale factor.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrUncalibrated is returned when a scale is needed for an axis that
	// has none.
	ErrUncalibrated = errors.New("axis not calibrated")
)

// ResolveScale returns referenceRealSize / referencePixelSize.
// referenceRealSize must be positive and referencePixelSize must be a
// positive finite number; otherwise ErrInvalidReference is returned and no
// scale is produced.
func ResolveScale(referenceRealSize, referencePixelSize float64) (float64, error) {
	if !(referenceRealSize > 0) || math.IsInf(referenceRealSize, 0) {
		return 0, fmt.Errorf("%w: reference size must be > 0, got %g", ErrInvalidReference, referenceRealSize)
	}
	if !(referencePixelSize > 0) || math.IsInf(referencePixelSize, 0) {
		return 0, fmt.Errorf("%w: reference pixel span must be > 0, got %g", ErrInvalidReference, referencePixelSize)
	}
	return referenceRealSize / referencePixelSize, nil
}

// ApplyScale converts a pixel distance to a physical magnitude.
// It is linear in pixelDistance.
func ApplyScale(pixelDistance, scaleFactor float64) float64 {
	return pixelDistance * scaleFactor
}

// ApplyAreaScale converts a pixel area to a physical area.
func ApplyAreaScale(pixelArea, scaleFactor float64) float64 {
	return pixelArea * scaleFactor * scaleFactor
}

// Scale is a resolved scale factor together with how it was obtained.
type Scale struct {
	Factor          float64 `json:"factor"`
	ReferenceSize   float64 `json:"reference_size_cm"`
	ReferencePixels float64 `json:"reference_pixels"`
	Assumed         bool    `json:"assumed"`
}

// Apply converts pixelDistance with this scale.
func (s Scale) Apply(pixelDistance float64) float64 {
	return ApplyScale(pixelDistance, s.Factor)
}

// Resolver resolves scale factors, falling back to an assumed pixel
// baseline when no reference pixel span is known.
type Resolver struct {
	BaselinePixels float64
}

// NewResolver returns a Resolver with the given baseline. Non-positive
// values select DefaultBaselinePixels.
func NewResolver(baselinePixels float64) *Resolver {
	if !(baselinePixels > 0) {
		baselinePixels = DefaultBaselinePixels
	}
	return &Resolver{BaselinePixels: baselinePixels}
}

// Resolve returns the scale for a reference of referenceRealSize spanning
// referencePixels. referencePixels == 0 means "not measured" and selects the
// assumed baseline. Negative spans are rejected.
func (r *Resolver) Resolve(referenceRealSize, referencePixels float64) (Scale, error) {
	assumed := false
	if referencePixels == 0 {
		referencePixels = r.baseline()
		assumed = true
	}
	f, err := ResolveScale(referenceRealSize, referencePixels)
	if err != nil {
		return Scale{}, err
	}
	return Scale{
		Factor:          f,
		ReferenceSize:   referenceRealSize,
		ReferencePixels: referencePixels,
		Assumed:         assumed,
	}, nil
}

func (r *Resolver) baseline() float64 {
	if r == nil || !(r.BaselinePixels > 0) {
		return DefaultBaselinePixels
	}
	return r.BaselinePixels
}
