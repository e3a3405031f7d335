// Package goals tracks target values for a measured axis.
//
// A goal is Active until its progress reaches 1 (Completed) or its target
// date passes first (Expired). Both outcomes are terminal.
package goals

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/measure"
)

// ErrInvalidGoal is returned for goals that cannot be created.
var ErrInvalidGoal = errors.New("invalid goal")

// Status is a goal's lifecycle state.
type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Expired   Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Completed || s == Expired
}

// Goal is a target value for one axis.
type Goal struct {
	ID            string       `json:"id"`
	Kind          measure.Kind `json:"type"`
	TargetValue   float64      `json:"target_value"`
	CurrentValue  float64      `json:"current_value"`
	StartDate     time.Time    `json:"start_date"`
	TargetDate    time.Time    `json:"target_date"`
	Status        Status       `json:"status"`
	Progress      float64      `json:"progress"`
	CompletedDate *time.Time   `json:"completed_date,omitempty"`
}

// Progress returns clamp(current/target, 0, 1). A non-positive target
// yields 0.
func Progress(current, target float64) float64 {
	if !(target > 0) || math.IsNaN(current) {
		return 0
	}
	return math.Max(0, math.Min(1, current/target))
}

// New creates an Active goal starting at now.
func New(now time.Time, kind measure.Kind, target, current float64, targetDate time.Time) (Goal, error) {
	if kind != measure.Length && kind != measure.Girth {
		return Goal{}, fmt.Errorf("%w: unsupported kind %q", ErrInvalidGoal, kind)
	}
	if !(target > 0) || math.IsInf(target, 0) {
		return Goal{}, fmt.Errorf("%w: target must be > 0, got %g", ErrInvalidGoal, target)
	}
	if current < 0 || math.IsNaN(current) || math.IsInf(current, 0) {
		return Goal{}, fmt.Errorf("%w: current value must be >= 0, got %g", ErrInvalidGoal, current)
	}
	if !targetDate.After(now) {
		return Goal{}, fmt.Errorf("%w: target date %s is not after %s", ErrInvalidGoal, targetDate.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	g := Goal{
		ID:           uuid.New().String(),
		Kind:         kind,
		TargetValue:  target,
		CurrentValue: current,
		StartDate:    now.UTC(),
		TargetDate:   targetDate.UTC(),
		Status:       Active,
	}
	g.Progress = Progress(current, target)
	return g, nil
}

// Update records a new current value as of now and applies any status
// transition. Terminal goals are left untouched. It reports whether the
// status changed.
func (g *Goal) Update(current float64, now time.Time) bool {
	if g.Status.Terminal() {
		return false
	}
	g.CurrentValue = current
	g.Progress = Progress(current, g.TargetValue)
	return g.advance(now)
}

// Check applies the expiry rule without a new value.
func (g *Goal) Check(now time.Time) bool {
	if g.Status.Terminal() {
		return false
	}
	return g.advance(now)
}

func (g *Goal) advance(now time.Time) bool {
	switch {
	case g.Progress >= 1:
		g.Status = Completed
		t := now.UTC()
		g.CompletedDate = &t
		return true
	case now.After(g.TargetDate):
		g.Status = Expired
		return true
	}
	return false
}

// Refresh updates every goal from the latest snapshot value of its kind and
// sweeps expiry. It returns the updated goals and those whose status
// changed in this call. The input slice is not modified.
func Refresh(goals []Goal, snapshots []measure.Snapshot, now time.Time) (updated, transitioned []Goal) {
	latest := latestValues(snapshots)
	updated = make([]Goal, len(goals))
	for i, g := range goals {
		var changed bool
		if v, ok := latest[g.Kind]; ok {
			changed = g.Update(v, now)
		} else {
			changed = g.Check(now)
		}
		updated[i] = g
		if changed {
			transitioned = append(transitioned, g)
		}
	}
	return updated, transitioned
}

// CompletedCount returns how many goals are Completed.
func CompletedCount(goals []Goal) int {
	n := 0
	for _, g := range goals {
		if g.Status == Completed {
			n++
		}
	}
	return n
}

func latestValues(snapshots []measure.Snapshot) map[measure.Kind]float64 {
	out := make(map[measure.Kind]float64, 2)
	for _, s := range analytics.Sorted(snapshots) {
		for _, k := range []measure.Kind{measure.Length, measure.Girth} {
			if v, ok := s.Axis(k); ok {
				out[k] = v
			}
		}
	}
	return out
}
