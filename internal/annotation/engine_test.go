package annotation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/detect"
	"github.com/banshee-data/progress.report/internal/geometry"
	"github.com/banshee-data/progress.report/internal/measure"
)

var ctx = context.Background()

func click(t *testing.T, e *Engine, x, y float64) {
	t.Helper()
	require.NoError(t, e.Click(ctx, geometry.Pt(x, y)))
}

func TestEngine_LengthMeasurement(t *testing.T) {
	e := NewEngine(Options{})
	_, err := e.CalibrateFromReference(calibration.AxisLength, 2.5, 50)
	require.NoError(t, err)

	e.SelectTool(ToolLength)
	click(t, e, 0, 0)
	assert.Equal(t, AwaitingSecondPoint{Tool: ToolLength, Start: geometry.Pt(0, 0)}, e.State())

	click(t, e, 30, 40)
	assert.Equal(t, Idle{}, e.State())

	ms := e.Measurements()
	require.Len(t, ms, 1)
	assert.Equal(t, measure.Length, ms[0].Kind)
	assert.InDelta(t, 50, ms[0].PixelLength, 1e-9)
	v, ok := ms[0].Value()
	require.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-9)
	assert.False(t, ms[0].AssumedScale)
}

func TestEngine_UncalibratedLeavesGesturePending(t *testing.T) {
	e := NewEngine(Options{})
	e.SelectTool(ToolGirth)
	click(t, e, 0, 0)

	err := e.Click(ctx, geometry.Pt(10, 0))
	assert.ErrorIs(t, err, calibration.ErrUncalibrated)
	assert.Empty(t, e.Measurements())
	assert.Equal(t, AwaitingSecondPoint{Tool: ToolGirth, Start: geometry.Pt(0, 0)}, e.State())
}

func TestEngine_AssumedBaselineFromReferencePoint(t *testing.T) {
	e := NewEngine(Options{
		Resolver:       calibration.NewResolver(50),
		ReferenceSizes: map[calibration.Axis]float64{calibration.AxisLength: 2.5},
	})
	e.SelectTool(ToolReference)
	click(t, e, 5, 5)

	e.SelectTool(ToolLength)
	click(t, e, 0, 0)
	click(t, e, 100, 0)

	ms := e.Measurements()
	require.Len(t, ms, 1)
	assert.InDelta(t, 5.0, *ms[0].Values.Length, 1e-9)
	assert.True(t, ms[0].AssumedScale)

	cal := e.Calibration()
	require.NotNil(t, cal.Length)
	assert.True(t, cal.Length.Assumed)
}

func TestEngine_ReferenceRing(t *testing.T) {
	e := NewEngine(Options{})
	_, err := e.CalibrateFromReference(calibration.AxisLength, 2, 40)
	require.NoError(t, err)
	_, err = e.CalibrateFromReference(calibration.AxisGirth, 2, 40)
	require.NoError(t, err)

	e.SelectTool(ToolReference)

	click(t, e, 1, 1)
	refs := e.ReferencePoints()
	require.NotNil(t, refs.Length)
	assert.Nil(t, refs.Girth)
	assert.Nil(t, e.Calibration().Length, "placing a length reference drops the length scale")
	assert.NotNil(t, e.Calibration().Girth)

	click(t, e, 2, 2)
	refs = e.ReferencePoints()
	assert.Equal(t, geometry.Pt(1, 1), *refs.Length)
	assert.Equal(t, geometry.Pt(2, 2), *refs.Girth)
	assert.Nil(t, e.Calibration().Girth)

	click(t, e, 3, 3)
	refs = e.ReferencePoints()
	assert.Equal(t, geometry.Pt(3, 3), *refs.Length)
	assert.Nil(t, refs.Girth)
	assert.Equal(t, 1, refs.Count())
}

func TestEngine_SelectToolAbandonsGesture(t *testing.T) {
	e := NewEngine(Options{})
	e.SelectTool(ToolLength)
	click(t, e, 1, 1)
	e.SelectTool(ToolGirth)
	assert.Equal(t, Idle{}, e.State())

	// reselecting the same tool is a no-op
	click(t, e, 1, 1)
	e.SelectTool(ToolGirth)
	assert.IsType(t, AwaitingSecondPoint{}, e.State())
}

func TestEngine_AreaTool(t *testing.T) {
	e := NewEngine(Options{})
	_, err := e.CalibrateFromReference(calibration.AxisLength, 1, 10)
	require.NoError(t, err)

	e.SelectTool(ToolArea)
	click(t, e, 50, 50)
	click(t, e, 60, 50)

	ms := e.Measurements()
	require.Len(t, ms, 1)
	m := ms[0]
	assert.Equal(t, measure.Area, m.Kind)
	require.NotNil(t, m.Center)
	assert.Equal(t, geometry.Pt(50, 50), *m.Center)
	assert.InDelta(t, 10, *m.Radius, 1e-9)
	assert.InDelta(t, math.Pi, *m.Values.Area, 1e-9)
}

func TestEngine_Highlight(t *testing.T) {
	square := geometry.Polygon{geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(10, 10), geometry.Pt(0, 10)}
	e := NewEngine(Options{Detector: detect.Static{Outlines: []geometry.Polygon{square}}})
	e.SelectTool(ToolHighlight)

	click(t, e, 5, 5)
	assert.Equal(t, square, e.Outline())

	err := e.Click(ctx, geometry.Pt(50, 50))
	assert.ErrorIs(t, err, detect.ErrDetectionEmpty)
	assert.Equal(t, square, e.Outline(), "failed detection keeps the previous outline")
}

func TestEngine_HighlightWithoutDetector(t *testing.T) {
	e := NewEngine(Options{})
	e.SelectTool(ToolHighlight)
	assert.ErrorIs(t, e.Click(ctx, geometry.Pt(1, 1)), ErrNoDetector)
}

func TestEngine_Errors(t *testing.T) {
	e := NewEngine(Options{})
	assert.ErrorIs(t, e.Click(ctx, geometry.Pt(1, 1)), ErrNoTool)
	assert.ErrorIs(t, e.Complete(geometry.Pt(1, 1)), ErrToolStateConflict)

	e.SelectTool(ToolLength)
	assert.Error(t, e.Click(ctx, geometry.Pt(math.NaN(), 1)))
	assert.Equal(t, Idle{}, e.State())

	_, err := e.CalibrateFromReference(calibration.AxisLength, 0, 10)
	assert.ErrorIs(t, err, calibration.ErrInvalidReference)
	assert.ErrorIs(t, e.SetReferenceSize(calibration.AxisGirth, -1), calibration.ErrInvalidReference)
}

func TestEngine_MismatchedPendingGestureLeavesState(t *testing.T) {
	var renders int
	e := NewEngine(Options{OnChange: func(Overlay) { renders++ }})
	e.SelectTool(ToolLength)
	pending := AwaitingSecondPoint{Tool: ToolGirth, Start: geometry.Pt(1, 1)}
	e.state = pending
	renders = 0

	assert.ErrorIs(t, e.Click(ctx, geometry.Pt(5, 5)), ErrToolStateConflict)
	assert.Equal(t, pending, e.State())
	assert.Empty(t, e.Measurements())
	assert.Zero(t, renders)
}

func TestEngine_Complete(t *testing.T) {
	e := NewEngine(Options{})
	_, err := e.CalibrateFromReference(calibration.AxisGirth, 1, 1)
	require.NoError(t, err)
	e.SelectTool(ToolGirth)
	click(t, e, 0, 0)
	require.NoError(t, e.Complete(geometry.Pt(0, 3)))
	assert.InDelta(t, 3, *e.Measurements()[0].Values.Girth, 1e-9)
}

func TestEngine_OverlayIsPureAndNotified(t *testing.T) {
	var got []Overlay
	e := NewEngine(Options{OnChange: func(o Overlay) { got = append(got, o) }})
	_, err := e.CalibrateFromReference(calibration.AxisLength, 2.5, 50)
	require.NoError(t, err)
	e.SelectTool(ToolLength)
	click(t, e, 0, 0)
	click(t, e, 50, 0)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	if diff := cmp.Diff(e.Overlay(), last); diff != "" {
		t.Errorf("overlay differs from last notification (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(e.Overlay(), e.Overlay()); diff != "" {
		t.Errorf("overlay is not stable:\n%s", diff)
	}

	want := Overlay{
		{Kind: ShapeLine, Role: "length", Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(50, 0)}},
		{Kind: ShapeLabel, Role: "length", Points: []geometry.Point{geometry.Pt(25, 0)}, Text: "2.50 cm"},
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("overlay mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_OverlayDisplayUnit(t *testing.T) {
	e := NewEngine(Options{DisplayUnit: "in"})
	_, err := e.CalibrateFromReference(calibration.AxisLength, 2.54, 10)
	require.NoError(t, err)
	e.SelectTool(ToolLength)
	click(t, e, 0, 0)
	click(t, e, 0, 10)

	o := e.Overlay()
	require.Len(t, o, 2)
	assert.Equal(t, "1.00 in", o[1].Text)
}

func TestEngine_ClearAndDraft(t *testing.T) {
	e := NewEngine(Options{})
	_, err := e.CalibrateFromReference(calibration.AxisLength, 1, 10)
	require.NoError(t, err)
	_, err = e.CalibrateFromReference(calibration.AxisGirth, 1, 10)
	require.NoError(t, err)

	e.SelectTool(ToolLength)
	click(t, e, 0, 0)
	click(t, e, 100, 0) // 10 cm
	click(t, e, 0, 0)
	click(t, e, 120, 0) // 12 cm, latest wins
	e.SelectTool(ToolGirth)
	click(t, e, 0, 0)
	click(t, e, 0, 90)
	e.SelectTool(ToolReference)
	click(t, e, 1, 1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conf := 0.8
	s := e.Draft(now, &conf)
	require.NoError(t, s.Validate())
	assert.InDelta(t, 12, *s.Length, 1e-9)
	assert.InDelta(t, 9, *s.Girth, 1e-9)
	assert.Equal(t, 0.8, *s.Confidence)
	assert.True(t, s.ReferenceObjectDetected)
	assert.Equal(t, now, s.Timestamp)
	assert.NotEmpty(t, s.ID)

	e.Clear()
	assert.Equal(t, Idle{}, e.State())
	assert.Equal(t, ToolNone, e.Tool())
	assert.Empty(t, e.Measurements())
	assert.Empty(t, e.Overlay())
	assert.Equal(t, 0, e.ReferencePoints().Count())

	empty := e.Draft(now, nil)
	assert.ErrorIs(t, empty.Validate(), measure.ErrInvalidSnapshot)
}

func TestParseTool(t *testing.T) {
	for _, s := range []string{"length", "girth", "area", "highlight", "reference", ""} {
		if _, err := ParseTool(s); err != nil {
			t.Errorf("ParseTool(%q): %v", s, err)
		}
	}
	if _, err := ParseTool("lasso"); err == nil {
		t.Error("expected error for unknown tool")
	}
}
