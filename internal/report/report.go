// Package report renders progress history and projections as an
// interactive HTML page (go-echarts) or a static PNG chart (gonum/plot).
package report

import (
	"errors"
	"math"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/projection"
	"github.com/banshee-data/progress.report/internal/units"
)

// ErrNoData is returned when there is nothing to draw for the axis.
var ErrNoData = errors.New("no data to plot")

const dateLayout = "2006-01-02"

// Data is the input to both renderers. Values are canonical centimetres;
// Unit selects the display unit.
type Data struct {
	Title      string
	Unit       string
	Axis       measure.Kind
	Snapshots  []measure.Snapshot
	Projection []projection.Step
	Weeks      []analytics.Week
	Metrics    analytics.Metrics
}

func (d Data) unit() string {
	if units.IsValid(d.Unit) {
		return d.Unit
	}
	return units.CM
}

func (d Data) title() string {
	if d.Title != "" {
		return d.Title
	}
	return "Progress"
}

// display converts a canonical value for display, rounded to 2 places.
func (d Data) display(cm float64) float64 {
	return math.Round(units.ConvertLength(cm, d.unit())*100) / 100
}

type point struct {
	t time.Time
	v float64
}

// series returns the display values of axis k in timestamp order.
func (d Data) series(k measure.Kind) []point {
	var out []point
	for _, s := range analytics.Sorted(d.Snapshots) {
		if v, ok := s.Axis(k); ok {
			out = append(out, point{t: s.Timestamp, v: d.display(v)})
		}
	}
	return out
}
