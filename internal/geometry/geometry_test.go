package geometry

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{"same point", Pt(3, 4), Pt(3, 4), 0},
		{"3-4-5", Pt(0, 0), Pt(3, 4), 5},
		{"horizontal", Pt(10, 20), Pt(110, 20), 100},
		{"reversed", Pt(3, 4), Pt(0, 0), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Distance(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPolygonMetrics(t *testing.T) {
	square := Polygon{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10)}

	if got := square.Perimeter(); got != 40 {
		t.Errorf("Perimeter = %f, want 40", got)
	}
	if got := square.Area(); got != 100 {
		t.Errorf("Area = %f, want 100", got)
	}
	if got := square.Centroid(); got != Pt(5, 5) {
		t.Errorf("Centroid = %v, want (5,5)", got)
	}
	b := square.Bounds()
	if b.Width() != 10 || b.Height() != 10 {
		t.Errorf("Bounds = %+v", b)
	}

	// Reversed winding gives the same area.
	rev := Polygon{Pt(0, 10), Pt(10, 10), Pt(10, 0), Pt(0, 0)}
	if got := rev.Area(); got != 100 {
		t.Errorf("reversed Area = %f, want 100", got)
	}
}

func TestPolygonDegenerate(t *testing.T) {
	var empty Polygon
	if empty.Perimeter() != 0 || empty.Area() != 0 {
		t.Error("empty polygon should have zero perimeter and area")
	}
	if empty.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
	line := Polygon{Pt(0, 0), Pt(4, 0)}
	if line.Area() != 0 {
		t.Errorf("two-point area = %f, want 0", line.Area())
	}
	if line.Perimeter() != 8 {
		t.Errorf("two-point perimeter = %f, want 8 (there and back)", line.Perimeter())
	}
}

func TestPointIsFinite(t *testing.T) {
	if !Pt(1, 2).IsFinite() {
		t.Error("expected finite")
	}
	if Pt(math.NaN(), 0).IsFinite() || Pt(0, math.Inf(1)).IsFinite() {
		t.Error("expected non-finite")
	}
}

func TestPolygonContains(t *testing.T) {
	tri := Polygon{Pt(0, 0), Pt(10, 0), Pt(0, 10)}
	tests := []struct {
		p    Point
		want bool
	}{
		{Pt(2, 2), true},
		{Pt(6, 6), false},
		{Pt(-1, 1), false},
		{Pt(1, 8), true},
	}
	for _, tt := range tests {
		if got := tri.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if (Polygon{Pt(0, 0), Pt(1, 1)}).Contains(Pt(0.5, 0.5)) {
		t.Error("degenerate polygon contains nothing")
	}
}
