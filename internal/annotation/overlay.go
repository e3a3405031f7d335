package annotation

import (
	"fmt"

	"github.com/banshee-data/progress.report/internal/geometry"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/units"
)

// ShapeKind is the primitive a renderer draws.
type ShapeKind string

const (
	ShapeLine    ShapeKind = "line"
	ShapeCircle  ShapeKind = "circle"
	ShapeMarker  ShapeKind = "marker"
	ShapePolygon ShapeKind = "polygon"
	ShapeLabel   ShapeKind = "label"
)

// Shape is one overlay primitive in image-pixel coordinates.
type Shape struct {
	Kind   ShapeKind        `json:"kind"`
	Role   string           `json:"role"`
	Points []geometry.Point `json:"points"`
	Radius float64          `json:"radius,omitempty"`
	Text   string           `json:"text,omitempty"`
}

// Overlay is the full set of shapes for the current annotation state.
type Overlay []Shape

// Overlay renders the annotation state into shapes. It is a pure function
// of that state; calling it twice without a mutation in between yields the
// same result.
func (e *Engine) Overlay() Overlay {
	var out Overlay

	for _, m := range e.measurements {
		out = append(out, e.measurementShapes(m)...)
	}

	if e.refs.Length != nil {
		out = append(out, Shape{Kind: ShapeMarker, Role: "reference_length", Points: []geometry.Point{*e.refs.Length}, Text: "L"})
	}
	if e.refs.Girth != nil {
		out = append(out, Shape{Kind: ShapeMarker, Role: "reference_girth", Points: []geometry.Point{*e.refs.Girth}, Text: "G"})
	}

	if len(e.outline) > 0 {
		out = append(out, Shape{Kind: ShapePolygon, Role: "outline", Points: e.outline.Clone()})
		if s, err := e.cal.Any(); err == nil && len(e.outline) >= 3 {
			perim := s.Apply(e.outline.Perimeter())
			area := units.ConvertArea(e.outline.Area()*s.Factor*s.Factor, e.displayUnit)
			out = append(out, Shape{
				Kind:   ShapeLabel,
				Role:   "outline",
				Points: []geometry.Point{e.outline.Centroid()},
				Text:   fmt.Sprintf("%s / %.2f %s²", units.FormatLength(perim, e.displayUnit), area, e.displayUnit),
			})
		}
	}

	if st, ok := e.state.(AwaitingSecondPoint); ok {
		out = append(out, Shape{Kind: ShapeMarker, Role: "pending_" + string(st.Tool), Points: []geometry.Point{st.Start}})
	}
	return out
}

func (e *Engine) measurementShapes(m measure.ManualMeasurement) []Shape {
	role := string(m.Kind)
	switch m.Kind {
	case measure.Area:
		if m.Center == nil || m.Radius == nil {
			return nil
		}
		shapes := []Shape{{Kind: ShapeCircle, Role: role, Points: []geometry.Point{*m.Center}, Radius: *m.Radius}}
		if v, ok := m.Value(); ok {
			shapes = append(shapes, Shape{
				Kind:   ShapeLabel,
				Role:   role,
				Points: []geometry.Point{*m.Center},
				Text:   fmt.Sprintf("%.2f %s²", units.ConvertArea(v, e.displayUnit), e.displayUnit),
			})
		}
		return shapes
	default:
		if m.End == nil {
			return nil
		}
		shapes := []Shape{{Kind: ShapeLine, Role: role, Points: []geometry.Point{m.Start, *m.End}}}
		if v, ok := m.Value(); ok {
			text := units.FormatLength(v, e.displayUnit)
			if m.AssumedScale {
				text = "~" + text
			}
			shapes = append(shapes, Shape{
				Kind:   ShapeLabel,
				Role:   role,
				Points: []geometry.Point{geometry.Midpoint(m.Start, *m.End)},
				Text:   text,
			})
		}
		return shapes
	}
}
