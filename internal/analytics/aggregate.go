// Package analytics derives progress metrics from a sequence of snapshots.
//
// Metrics are never stored; they are recomputed from the snapshots every
// time so they cannot go stale. Aggregate never fails: empty or degenerate
// input yields zero values, never NaN.
package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/progress.report/internal/measure"
)

// ErrInsufficientData is returned by consumers that need at least two
// snapshots (growth, projection).
var ErrInsufficientData = errors.New("insufficient data")

// DefaultMomentumWindow is the number of trailing growth-rate samples
// averaged into Momentum.
const DefaultMomentumWindow = 3

// Metrics summarises a snapshot sequence.
type Metrics struct {
	// AverageGrowth is the mean of every length and girth delta sampled
	// on growth steps. Non-growth steps are excluded, not counted as zero.
	AverageGrowth       float64 `json:"average_growth"`
	AverageLengthGrowth float64 `json:"average_length_growth"`
	AverageGirthGrowth  float64 `json:"average_girth_growth"`

	// Consistency is measured snapshots per day since the first, as a
	// percentage capped at 100.
	Consistency float64 `json:"consistency"`

	// Momentum, Volatility and TrendStrength are computed over the
	// growth-rate series (percent change per consecutive pair).
	Momentum      float64 `json:"momentum"`
	Volatility    float64 `json:"volatility"`
	TrendStrength float64 `json:"trend_strength"`

	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	GrowthSteps   int `json:"growth_steps"`

	TotalSnapshots    int `json:"total_snapshots"`
	MeasuredSnapshots int `json:"measured_snapshots"`
	DaysSinceFirst    int `json:"days_since_first"`

	GrowthRates []float64 `json:"growth_rates"`

	First *measure.Snapshot `json:"first,omitempty"`
	Last  *measure.Snapshot `json:"last,omitempty"`
}

// Options tunes Aggregate. The zero value selects the defaults.
type Options struct {
	MomentumWindow int
}

func (o Options) momentumWindow() int {
	if o.MomentumWindow <= 0 {
		return DefaultMomentumWindow
	}
	return o.MomentumWindow
}

// Sorted returns a copy of snapshots ordered by timestamp. Equal
// timestamps keep their input order.
func Sorted(snapshots []measure.Snapshot) []measure.Snapshot {
	out := make([]measure.Snapshot, len(snapshots))
	copy(out, snapshots)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Aggregate computes Metrics with default options.
func Aggregate(snapshots []measure.Snapshot, now time.Time) Metrics {
	return AggregateWith(snapshots, now, Options{})
}

// AggregateWith computes Metrics for snapshots as of now. Input order does
// not matter; the input slice is not modified.
func AggregateWith(snapshots []measure.Snapshot, now time.Time, opts Options) Metrics {
	s := Sorted(snapshots)
	m := Metrics{TotalSnapshots: len(s), GrowthRates: []float64{}}
	if len(s) == 0 {
		return m
	}

	first, last := s[0], s[len(s)-1]
	m.First, m.Last = &first, &last
	for _, snap := range s {
		if snap.HasMeasurement() {
			m.MeasuredSnapshots++
		}
	}

	var all, lengths, girths []float64
	streak := 0
	for i := 1; i < len(s); i++ {
		prev, curr := s[i-1], s[i]
		lg, hasL := delta(prev.Length, curr.Length)
		gg, hasG := delta(prev.Girth, curr.Girth)

		if (hasL && lg > 0) || (hasG && gg > 0) {
			m.GrowthSteps++
			streak++
			if hasL {
				lengths = append(lengths, lg)
				all = append(all, lg)
			}
			if hasG {
				girths = append(girths, gg)
				all = append(all, gg)
			}
		} else {
			streak = 0
		}
		if streak > m.LongestStreak {
			m.LongestStreak = streak
		}

		if r, ok := growthRate(prev, curr); ok {
			m.GrowthRates = append(m.GrowthRates, r)
		}
	}
	m.CurrentStreak = streak
	m.AverageGrowth = mean(all)
	m.AverageLengthGrowth = mean(lengths)
	m.AverageGirthGrowth = mean(girths)

	m.DaysSinceFirst = wholeDays(first.Timestamp, now)
	m.Consistency = Consistency(m.MeasuredSnapshots, m.DaysSinceFirst)

	rates := m.GrowthRates
	if w := opts.momentumWindow(); len(rates) > w {
		m.Momentum = mean(rates[len(rates)-w:])
	} else {
		m.Momentum = mean(rates)
	}
	if len(rates) > 0 {
		_, m.Volatility = stat.PopMeanStdDev(rates, nil)
		m.TrendStrength = math.Abs(floats.Sum(rates)) / float64(len(rates))
	}
	return m
}

// Consistency returns min(100, measured/days*100), or 0 when days <= 0.
func Consistency(measured, days int) float64 {
	if days <= 0 || measured <= 0 {
		return 0
	}
	return math.Min(100, float64(measured)/float64(days)*100)
}

// delta returns curr-prev when both are present.
func delta(prev, curr *float64) (float64, bool) {
	if prev == nil || curr == nil {
		return 0, false
	}
	return *curr - *prev, true
}

// growthRate is the mean percent change over the axes present in both
// snapshots. Axes with a zero previous value are skipped.
func growthRate(prev, curr measure.Snapshot) (float64, bool) {
	var pct []float64
	for _, k := range []measure.Kind{measure.Length, measure.Girth} {
		p, okp := prev.Axis(k)
		c, okc := curr.Axis(k)
		if !okp || !okc || p == 0 {
			continue
		}
		pct = append(pct, (c-p)/p*100)
	}
	if len(pct) == 0 {
		return 0, false
	}
	return mean(pct), true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// wholeDays counts complete 24h periods from first to now, never negative.
func wholeDays(first, now time.Time) int {
	if !now.After(first) {
		return 0
	}
	return int(now.Sub(first) / (24 * time.Hour))
}
