package analytics

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/units"
)

// AxisSummary describes one tracked axis across a sequence.
type AxisSummary struct {
	Count  int     `json:"count"`
	First  float64 `json:"first"`
	Last   float64 `json:"last"`
	Change float64 `json:"change"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary is the first/last view of a sequence used by reports.
type Summary struct {
	From   time.Time    `json:"from"`
	To     time.Time    `json:"to"`
	Span   string       `json:"span"`
	Length *AxisSummary `json:"length,omitempty"`
	Girth  *AxisSummary `json:"girth,omitempty"`
}

// Summarize builds a Summary. Axes that were never measured are nil.
func Summarize(snapshots []measure.Snapshot) Summary {
	s := Sorted(snapshots)
	var sum Summary
	if len(s) == 0 {
		return sum
	}
	sum.From = s[0].Timestamp
	sum.To = s[len(s)-1].Timestamp
	sum.Span = sum.To.Sub(sum.From).String()
	sum.Length = summarizeAxis(s, measure.Length)
	sum.Girth = summarizeAxis(s, measure.Girth)
	return sum
}

func summarizeAxis(s []measure.Snapshot, k measure.Kind) *AxisSummary {
	vals := axisValues(s, k)
	if len(vals) == 0 {
		return nil
	}
	return &AxisSummary{
		Count:  len(vals),
		First:  vals[0],
		Last:   vals[len(vals)-1],
		Change: vals[len(vals)-1] - vals[0],
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
	}
}

func axisValues(s []measure.Snapshot, k measure.Kind) []float64 {
	var out []float64
	for _, snap := range s {
		if v, ok := snap.Axis(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// Week is the rollup of one calendar week (Monday start).
type Week struct {
	Start  time.Time `json:"start"`
	Count  int       `json:"count"`
	Length *float64  `json:"length,omitempty"`
	Girth  *float64  `json:"girth,omitempty"`
}

// Weekly groups snapshots by week in loc and averages each axis. Weeks with
// no snapshots are omitted. A nil loc means UTC.
func Weekly(snapshots []measure.Snapshot, loc *time.Location) []Week {
	if loc == nil {
		loc = time.UTC
	}
	s := Sorted(snapshots)
	var out []Week
	var group []measure.Snapshot
	flush := func() {
		if len(group) == 0 {
			return
		}
		w := Week{Start: units.StartOfWeek(group[0].Timestamp, loc), Count: len(group)}
		if v := axisValues(group, measure.Length); len(v) > 0 {
			w.Length = measure.Float(mean(v))
		}
		if v := axisValues(group, measure.Girth); len(v) > 0 {
			w.Girth = measure.Float(mean(v))
		}
		out = append(out, w)
		group = group[:0]
	}
	for _, snap := range s {
		if len(group) > 0 && !units.StartOfWeek(snap.Timestamp, loc).Equal(units.StartOfWeek(group[0].Timestamp, loc)) {
			flush()
		}
		group = append(group, snap)
	}
	flush()
	return out
}
