// Package geometry holds image-pixel-space primitives shared by the
// annotation engine, the outline detector and the overlay renderer.
//
// Coordinates are pixels with the origin at the top-left corner and y
// growing downwards. They carry no physical unit; converting them is the
// calibration package's job.
package geometry

import (
	"fmt"
	"math"
)

// Point is a location in image-pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance returns the Euclidean distance between a and b in pixels.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Polygon is a closed outline; the last vertex connects back to the first.
type Polygon []Point

// Perimeter returns the length of the closed outline in pixels.
func (pg Polygon) Perimeter() float64 {
	if len(pg) < 2 {
		return 0
	}
	var sum float64
	for i := range pg {
		sum += Distance(pg[i], pg[(i+1)%len(pg)])
	}
	return sum
}

// Area returns the enclosed area in square pixels (shoelace formula).
// Winding order does not matter.
func (pg Polygon) Area() float64 {
	if len(pg) < 3 {
		return 0
	}
	var twice float64
	for i := range pg {
		j := (i + 1) % len(pg)
		twice += pg[i].X*pg[j].Y - pg[j].X*pg[i].Y
	}
	return math.Abs(twice) / 2
}

// Centroid returns the vertex average. It is used to anchor overlay labels,
// not for physical computations.
func (pg Polygon) Centroid() Point {
	if len(pg) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pg {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pg))
	return Point{X: c.X / n, Y: c.Y / n}
}

// Bounds returns the bounding box of the outline.
func (pg Polygon) Bounds() Rect {
	if len(pg) == 0 {
		return Rect{}
	}
	r := Rect{Min: pg[0], Max: pg[0]}
	for _, p := range pg[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r
}

// Contains reports whether p lies inside the outline (even-odd rule).
func (pg Polygon) Contains(p Point) bool {
	if len(pg) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(pg)-1; i < len(pg); j, i = i, i+1 {
		a, b := pg[i], pg[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Clone returns a copy that shares no memory with pg.
func (pg Polygon) Clone() Polygon {
	if pg == nil {
		return nil
	}
	out := make(Polygon, len(pg))
	copy(out, pg)
	return out
}
