// Package projection forecasts a tracked value a few weeks ahead from its
// average growth, with confidence decaying over the horizon.
package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/measure"
)

// ErrInsufficientData is returned when fewer than two snapshots exist.
var ErrInsufficientData = analytics.ErrInsufficientData

// Defaults for Options.
const (
	DefaultSteps           = 12
	DefaultStepInterval    = 7 * 24 * time.Hour
	DefaultDecayPerStep    = 0.05
	DefaultConfidenceFloor = 0.3
	DefaultBand            = 0.1
)

// Options holds the projection constants. Zero fields select the defaults.
type Options struct {
	Steps           int
	StepInterval    time.Duration
	DecayPerStep    float64
	ConfidenceFloor float64
	Band            float64
}

// DefaultOptions returns the default projection constants.
func DefaultOptions() Options {
	return Options{
		Steps:           DefaultSteps,
		StepInterval:    DefaultStepInterval,
		DecayPerStep:    DefaultDecayPerStep,
		ConfidenceFloor: DefaultConfidenceFloor,
		Band:            DefaultBand,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Steps > 0 {
		d.Steps = o.Steps
	}
	if o.StepInterval > 0 {
		d.StepInterval = o.StepInterval
	}
	if o.DecayPerStep > 0 {
		d.DecayPerStep = o.DecayPerStep
	}
	if o.ConfidenceFloor > 0 {
		d.ConfidenceFloor = o.ConfidenceFloor
	}
	if o.Band > 0 {
		d.Band = o.Band
	}
	return d
}

// Step is one forecast point.
type Step struct {
	Index           int       `json:"step"`
	Date            time.Time `json:"date"`
	PredictedGrowth float64   `json:"predicted_growth"`
	PredictedValue  float64   `json:"predicted_value"`
	Confidence      float64   `json:"confidence"`
	Low             float64   `json:"low"`
	High            float64   `json:"high"`
}

// ProjectValue forecasts from lastValue given averageGrowth (percent per
// step). For step i, growth decays linearly as g*(1-i*decay) and may turn
// negative; confidence is max(floor, 1-i*decay); the range is a fixed band
// around the predicted value.
func ProjectValue(lastValue, averageGrowth float64, from time.Time, opts Options) []Step {
	o := opts.withDefaults()
	steps := make([]Step, 0, o.Steps)
	for i := 1; i <= o.Steps; i++ {
		decay := 1 - float64(i)*o.DecayPerStep
		g := averageGrowth * decay
		v := lastValue * (1 + g/100)
		steps = append(steps, Step{
			Index:           i,
			Date:            from.Add(time.Duration(i) * o.StepInterval),
			PredictedGrowth: g,
			PredictedValue:  v,
			Confidence:      math.Max(o.ConfidenceFloor, decay),
			Low:             v * (1 - o.Band),
			High:            v * (1 + o.Band),
		})
	}
	return steps
}

// Project forecasts axis from aggregated metrics. It needs at least two
// snapshots and a last snapshot carrying a value for axis.
func Project(m analytics.Metrics, axis measure.Kind, opts Options) ([]Step, error) {
	if m.TotalSnapshots < 2 || m.Last == nil {
		return nil, fmt.Errorf("%w: projection needs 2 snapshots, have %d", ErrInsufficientData, m.TotalSnapshots)
	}
	last, ok := m.Last.Axis(axis)
	if !ok {
		return nil, fmt.Errorf("%w: latest snapshot has no %s value", ErrInsufficientData, axis)
	}
	return ProjectValue(last, m.AverageGrowth, m.Last.Timestamp, opts), nil
}
