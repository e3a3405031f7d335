// Package achievement evaluates unlockable achievements against progress
// metrics and goals.
//
// Unlocking is one-way: once an achievement is unlocked it stays unlocked
// and keeps its original unlock date, whatever later metrics say.
package achievement

import (
	"math"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/goals"
)

// Kind selects the rule that scores an achievement.
type Kind string

const (
	FirstMeasurement  Kind = "first_measurement"
	TenMeasurements   Kind = "ten_measurements"
	FiftyMeasurements Kind = "fifty_measurements"
	Streak3           Kind = "streak_3"
	Streak7           Kind = "streak_7"
	Consistency80     Kind = "consistency_80"
	FirstGoal         Kind = "first_goal"
	PositiveMomentum  Kind = "positive_momentum"
)

// Achievement is one unlockable record. Progress never exceeds MaxProgress.
type Achievement struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Progress     float64    `json:"progress"`
	MaxProgress  float64    `json:"max_progress"`
	Unlocked     bool       `json:"unlocked"`
	UnlockedDate *time.Time `json:"unlocked_date,omitempty"`
}

// Input is everything a rule may look at.
type Input struct {
	Metrics       analytics.Metrics
	Goals         []goals.Goal
	SnapshotCount int
}

// Rule scores an achievement. The returned progress is clamped to
// [0, MaxProgress] by the evaluator; reaching MaxProgress unlocks.
type Rule interface {
	Progress(in Input) float64
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(in Input) float64

// Progress calls f.
func (f RuleFunc) Progress(in Input) float64 { return f(in) }

// Result is the outcome of one evaluation.
type Result struct {
	Achievements []Achievement `json:"achievements"`
	// Unlocked lists only achievements unlocked by this evaluation.
	Unlocked []Achievement `json:"newly_unlocked"`
}

// Evaluator scores achievements with a rule registry keyed by Kind.
type Evaluator struct {
	rules map[Kind]Rule
}

// NewEvaluator returns an evaluator with the default rules.
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: DefaultRules()}
}

// Register adds or replaces the rule for kind.
func (e *Evaluator) Register(kind Kind, r Rule) {
	e.rules[kind] = r
}

// Evaluate returns updated copies of achievements as of now. Achievements
// with no registered rule pass through unchanged. The input slice is not
// modified.
func (e *Evaluator) Evaluate(achievements []Achievement, in Input, now time.Time) Result {
	res := Result{Achievements: make([]Achievement, 0, len(achievements))}
	for _, a := range achievements {
		rule, ok := e.rules[a.Kind]
		if !ok {
			res.Achievements = append(res.Achievements, a)
			continue
		}
		if a.Unlocked {
			// never relock, never re-date
			a.Progress = a.MaxProgress
			res.Achievements = append(res.Achievements, a)
			continue
		}
		p := clamp(rule.Progress(in), a.MaxProgress)
		a.Progress = p
		if a.MaxProgress > 0 && p >= a.MaxProgress {
			a.Unlocked = true
			t := now.UTC()
			a.UnlockedDate = &t
			res.Unlocked = append(res.Unlocked, a)
		}
		res.Achievements = append(res.Achievements, a)
	}
	return res
}

// Evaluate runs the default evaluator.
func Evaluate(achievements []Achievement, in Input, now time.Time) Result {
	return NewEvaluator().Evaluate(achievements, in, now)
}

func clamp(p, max float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return math.Min(p, max)
}
