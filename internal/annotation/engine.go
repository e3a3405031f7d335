// Package annotation turns pointer clicks on a photo into measurements,
// reference points and highlighted outlines.
//
// An Engine owns the in-progress annotation state of exactly one photo. It
// performs no I/O of its own other than calling the configured detector; the
// caller turns a Draft into a persisted snapshot and then calls Clear.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/detect"
	"github.com/banshee-data/progress.report/internal/geometry"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/monitoring"
	"github.com/banshee-data/progress.report/internal/units"
)

var (
	// ErrToolStateConflict is returned when a gesture completion finds no
	// matching start point.
	ErrToolStateConflict = errors.New("tool state conflict")

	// ErrNoTool is returned by Click when no tool is selected.
	ErrNoTool = errors.New("no tool selected")

	// ErrNoDetector is returned by the highlight tool when no detector is
	// configured.
	ErrNoDetector = errors.New("no outline detector configured")
)

// Options configures an Engine.
type Options struct {
	Resolver *calibration.Resolver
	Detector detect.Detector

	// ReferenceSizes is the real size in cm of the reference object used
	// for each axis. An axis with no size cannot be calibrated from a
	// reference point alone.
	ReferenceSizes map[calibration.Axis]float64

	// DisplayUnit selects the unit of overlay labels. Defaults to cm.
	DisplayUnit string

	// OnChange receives a fresh overlay after every mutation.
	OnChange func(Overlay)
}

// Engine is the annotation state machine for one photo.
// It is not safe for concurrent use.
type Engine struct {
	resolver    *calibration.Resolver
	detector    detect.Detector
	refSizes    map[calibration.Axis]float64
	displayUnit string
	onChange    func(Overlay)

	img          image.Image
	tool         Tool
	state        State
	refs         measure.ReferencePoints
	cal          calibration.Calibration
	measurements []measure.ManualMeasurement
	outline      geometry.Polygon
}

// NewEngine returns an idle engine with no tool selected.
func NewEngine(opts Options) *Engine {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = calibration.NewResolver(0)
	}
	sizes := make(map[calibration.Axis]float64, len(opts.ReferenceSizes))
	for k, v := range opts.ReferenceSizes {
		sizes[k] = v
	}
	unit := opts.DisplayUnit
	if !units.IsValid(unit) {
		unit = units.CM
	}
	return &Engine{
		resolver:    resolver,
		detector:    opts.Detector,
		refSizes:    sizes,
		displayUnit: unit,
		onChange:    opts.OnChange,
		state:       Idle{},
	}
}

// State returns the current gesture state.
func (e *Engine) State() State { return e.state }

// Tool returns the selected tool.
func (e *Engine) Tool() Tool { return e.tool }

// ReferencePoints returns the placed reference points.
func (e *Engine) ReferencePoints() measure.ReferencePoints { return e.refs }

// Calibration returns the per-axis scales currently in effect.
func (e *Engine) Calibration() calibration.Calibration { return e.cal }

// Outline returns a copy of the highlighted outline, if any.
func (e *Engine) Outline() geometry.Polygon { return e.outline.Clone() }

// Measurements returns a copy of the completed measurements, oldest first.
func (e *Engine) Measurements() []measure.ManualMeasurement {
	out := make([]measure.ManualMeasurement, len(e.measurements))
	copy(out, e.measurements)
	return out
}

// SetImage starts annotating a new photo. All previous state is dropped.
func (e *Engine) SetImage(img image.Image) {
	e.reset()
	e.img = img
	e.changed()
}

// SelectTool switches tool. A pending two-click gesture is abandoned.
func (e *Engine) SelectTool(t Tool) {
	if t == e.tool {
		return
	}
	e.tool = t
	if _, ok := e.state.(AwaitingSecondPoint); ok {
		e.state = Idle{}
	}
	e.changed()
}

// SetReferenceSize records the real size of the reference object for axis
// and drops any scale previously derived for it.
func (e *Engine) SetReferenceSize(axis calibration.Axis, cm float64) error {
	if !(cm > 0) || math.IsInf(cm, 0) {
		return fmt.Errorf("%w: reference size must be > 0, got %g", calibration.ErrInvalidReference, cm)
	}
	e.refSizes[axis] = cm
	e.cal.Reset(axis)
	e.changed()
	return nil
}

// CalibrateFromReference resolves the scale for axis from a reference of
// realSize cm spanning pixelSpan pixels. A zero pixelSpan selects the
// resolver's assumed baseline. On error the calibration is unchanged.
func (e *Engine) CalibrateFromReference(axis calibration.Axis, realSize, pixelSpan float64) (calibration.Scale, error) {
	s, err := e.resolver.Resolve(realSize, pixelSpan)
	if err != nil {
		return calibration.Scale{}, err
	}
	e.refSizes[axis] = realSize
	e.cal.Set(axis, s)
	if s.Assumed {
		monitoring.Diagf("calibration %s: assumed %.0fpx baseline, factor %.4f cm/px", axis, s.ReferencePixels, s.Factor)
	}
	e.changed()
	return s, nil
}

// Click feeds one pointer click at p to the selected tool.
// On error the engine state is left as it was before the click.
func (e *Engine) Click(ctx context.Context, p geometry.Point) error {
	if !p.IsFinite() {
		return fmt.Errorf("invalid click position %v", p)
	}
	switch e.tool {
	case ToolNone:
		return ErrNoTool
	case ToolReference:
		e.placeReference(p)
		e.changed()
		return nil
	case ToolHighlight:
		return e.highlight(ctx, p)
	}
	if !e.tool.twoClick() {
		return fmt.Errorf("unknown tool %q", e.tool)
	}

	switch st := e.state.(type) {
	case Idle:
		e.state = AwaitingSecondPoint{Tool: e.tool, Start: p}
		e.changed()
		return nil
	case AwaitingSecondPoint:
		if st.Tool != e.tool {
			return fmt.Errorf("%w: pending %s gesture, tool is %s", ErrToolStateConflict, st.Tool, e.tool)
		}
		m, err := e.complete(st.Tool, st.Start, p)
		if err != nil {
			return err
		}
		e.measurements = append(e.measurements, m)
		e.state = Idle{}
		e.changed()
		return nil
	default:
		return fmt.Errorf("%w: unknown state %T", ErrToolStateConflict, st)
	}
}

// Complete finishes a pending two-click gesture at p. Unlike Click it never
// starts a gesture: with no start point recorded it fails with
// ErrToolStateConflict.
func (e *Engine) Complete(p geometry.Point) error {
	if _, ok := e.state.(AwaitingSecondPoint); !ok {
		return fmt.Errorf("%w: no start point", ErrToolStateConflict)
	}
	return e.Click(context.Background(), p)
}

func (e *Engine) complete(tool Tool, start, end geometry.Point) (measure.ManualMeasurement, error) {
	px := geometry.Distance(start, end)
	switch tool {
	case ToolLength, ToolGirth:
		axis := calibration.AxisLength
		kind := measure.Length
		if tool == ToolGirth {
			axis, kind = calibration.AxisGirth, measure.Girth
		}
		s, err := e.scaleFor(axis)
		if err != nil {
			return measure.ManualMeasurement{}, err
		}
		v := s.Apply(px)
		m := measure.ManualMeasurement{
			Kind:         kind,
			Start:        start,
			End:          &end,
			PixelLength:  px,
			AssumedScale: s.Assumed,
		}
		if kind == measure.Length {
			m.Values.Length = measure.Float(v)
		} else {
			m.Values.Girth = measure.Float(v)
		}
		return m, nil
	case ToolArea:
		s, err := e.anyScale()
		if err != nil {
			return measure.ManualMeasurement{}, err
		}
		center := start
		radius := px
		area := calibration.ApplyAreaScale(math.Pi*radius*radius, s.Factor)
		return measure.ManualMeasurement{
			Kind:         measure.Area,
			Start:        start,
			End:          &end,
			Center:       &center,
			Radius:       measure.Float(radius),
			PixelLength:  px,
			Values:       measure.Values{Area: measure.Float(area)},
			AssumedScale: s.Assumed,
		}, nil
	}
	return measure.ManualMeasurement{}, fmt.Errorf("%w: %s is not a two-click tool", ErrToolStateConflict, tool)
}

// scaleFor returns the scale for axis. An axis with a reference point and a
// known reference size but no explicit pixel span is resolved against the
// assumed baseline; otherwise calibration.ErrUncalibrated is returned.
func (e *Engine) scaleFor(axis calibration.Axis) (calibration.Scale, error) {
	if s, err := e.cal.For(axis); err == nil {
		return s, nil
	}
	if !e.hasReference(axis) {
		return calibration.Scale{}, fmt.Errorf("%w: %s has no reference point", calibration.ErrUncalibrated, axis)
	}
	size, ok := e.refSizes[axis]
	if !ok {
		return calibration.Scale{}, fmt.Errorf("%w: %s reference size unknown", calibration.ErrUncalibrated, axis)
	}
	s, err := e.resolver.Resolve(size, 0)
	if err != nil {
		return calibration.Scale{}, err
	}
	e.cal.Set(axis, s)
	monitoring.Diagf("calibration %s: assumed %.0fpx baseline, factor %.4f cm/px", axis, s.ReferencePixels, s.Factor)
	return s, nil
}

func (e *Engine) anyScale() (calibration.Scale, error) {
	if s, err := e.cal.Any(); err == nil {
		return s, nil
	}
	s, err := e.scaleFor(calibration.AxisLength)
	if err == nil {
		return s, nil
	}
	return e.scaleFor(calibration.AxisGirth)
}

func (e *Engine) hasReference(axis calibration.Axis) bool {
	switch axis {
	case calibration.AxisLength:
		return e.refs.Length != nil
	case calibration.AxisGirth:
		return e.refs.Girth != nil
	}
	return false
}

// placeReference advances the reference ring: none, then length, then both;
// a further click moves length to p and evicts girth. Every placement drops
// the scales derived from the replaced points.
func (e *Engine) placeReference(p geometry.Point) {
	pt := p
	switch {
	case e.refs.Length == nil:
		e.refs.Length = &pt
		e.cal.Reset(calibration.AxisLength)
	case e.refs.Girth == nil:
		e.refs.Girth = &pt
		e.cal.Reset(calibration.AxisGirth)
	default:
		e.refs = measure.ReferencePoints{Length: &pt}
		e.cal.Reset(calibration.AxisLength)
		e.cal.Reset(calibration.AxisGirth)
	}
}

func (e *Engine) highlight(ctx context.Context, p geometry.Point) error {
	if e.detector == nil {
		return ErrNoDetector
	}
	start := time.Now()
	pts, err := e.detector.DetectAt(ctx, e.img, p.X, p.Y)
	if err != nil {
		return fmt.Errorf("outline detection at %v: %w", p, err)
	}
	if len(pts) == 0 {
		return fmt.Errorf("outline detection at %v: %w", p, detect.ErrDetectionEmpty)
	}
	e.outline = geometry.Polygon(pts).Clone()
	monitoring.Diagf("outline detected: %d points in %s", len(pts), time.Since(start))
	e.changed()
	return nil
}

// Clear drops all annotation state, including the selected tool and
// calibration. The photo and reference sizes are kept.
func (e *Engine) Clear() {
	img := e.img
	e.reset()
	e.img = img
	e.changed()
}

func (e *Engine) reset() {
	e.img = nil
	e.tool = ToolNone
	e.state = Idle{}
	e.refs = measure.ReferencePoints{}
	e.cal = calibration.Calibration{}
	e.measurements = nil
	e.outline = nil
}

// Draft builds a snapshot candidate from the latest length and girth
// measurements. confidence may be nil. The result still has to pass
// Validate before it can be saved.
func (e *Engine) Draft(now time.Time, confidence *float64) measure.Snapshot {
	var length, girth *float64
	for i := len(e.measurements) - 1; i >= 0; i-- {
		m := e.measurements[i]
		if length == nil && m.Values.Length != nil {
			length = measure.Float(*m.Values.Length)
		}
		if girth == nil && m.Values.Girth != nil {
			girth = measure.Float(*m.Values.Girth)
		}
	}
	s := measure.NewSnapshot(now, length, girth)
	if confidence != nil {
		s.Confidence = measure.Float(*confidence)
	}
	s.ReferenceObjectDetected = e.refs.Count() > 0
	return s
}

func (e *Engine) changed() {
	if e.onChange != nil {
		e.onChange(e.Overlay())
	}
}
