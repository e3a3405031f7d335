// Package detect defines the object-outline detector used by the highlight
// tool, plus adapters around it. No detection algorithm lives here; the
// detector is a pluggable strategy.
package detect

import (
	"context"
	"errors"
	"image"

	"github.com/banshee-data/progress.report/internal/geometry"
)

var (
	// ErrDetectionEmpty is returned when the detector finds no outline at
	// the requested point.
	ErrDetectionEmpty = errors.New("no object detected at point")

	// ErrSuperseded is returned to a caller whose request was replaced by a
	// newer one before it completed.
	ErrSuperseded = errors.New("detection superseded by a newer request")
)

// Detector returns the outline of the object at pixel (x, y) of img.
// Implementations must honour ctx cancellation.
type Detector interface {
	DetectAt(ctx context.Context, img image.Image, x, y float64) ([]geometry.Point, error)
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context, img image.Image, x, y float64) ([]geometry.Point, error)

// DetectAt calls f.
func (f Func) DetectAt(ctx context.Context, img image.Image, x, y float64) ([]geometry.Point, error) {
	return f(ctx, img, x, y)
}

// Static answers from a fixed set of outlines: the first outline containing
// the point wins. It is used for development and tests.
type Static struct {
	Outlines []geometry.Polygon
}

// DetectAt implements Detector.
func (s Static) DetectAt(ctx context.Context, _ image.Image, x, y float64) ([]geometry.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := geometry.Pt(x, y)
	for _, o := range s.Outlines {
		if o.Contains(p) {
			return o.Clone(), nil
		}
	}
	return nil, ErrDetectionEmpty
}
