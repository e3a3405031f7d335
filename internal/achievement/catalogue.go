package achievement

import (
	"math"

	"github.com/banshee-data/progress.report/internal/goals"
)

// DefaultRules returns the rule for every default Kind.
func DefaultRules() map[Kind]Rule {
	return map[Kind]Rule{
		FirstMeasurement:  RuleFunc(snapshotCount),
		TenMeasurements:   RuleFunc(snapshotCount),
		FiftyMeasurements: RuleFunc(snapshotCount),
		Streak3:           RuleFunc(longestStreak),
		Streak7:           RuleFunc(longestStreak),
		Consistency80:     RuleFunc(func(in Input) float64 { return in.Metrics.Consistency }),
		FirstGoal:         RuleFunc(func(in Input) float64 { return float64(goals.CompletedCount(in.Goals)) }),
		PositiveMomentum:  RuleFunc(positiveMomentum),
	}
}

func snapshotCount(in Input) float64 { return float64(in.SnapshotCount) }

func longestStreak(in Input) float64 { return float64(in.Metrics.LongestStreak) }

func positiveMomentum(in Input) float64 {
	if in.Metrics.Momentum > 0 && !math.IsInf(in.Metrics.Momentum, 0) {
		return 1
	}
	return 0
}

// Defaults returns the default catalogue, all locked.
func Defaults() []Achievement {
	return []Achievement{
		{ID: "first-measurement", Kind: FirstMeasurement, Title: "First Measurement", Description: "Record your first measurement", MaxProgress: 1},
		{ID: "ten-measurements", Kind: TenMeasurements, Title: "Getting Consistent", Description: "Record 10 measurements", MaxProgress: 10},
		{ID: "fifty-measurements", Kind: FiftyMeasurements, Title: "Dedicated Tracker", Description: "Record 50 measurements", MaxProgress: 50},
		{ID: "streak-3", Kind: Streak3, Title: "On a Roll", Description: "Grow across 3 measurements in a row", MaxProgress: 3},
		{ID: "streak-7", Kind: Streak7, Title: "Unstoppable", Description: "Grow across 7 measurements in a row", MaxProgress: 7},
		{ID: "consistency-80", Kind: Consistency80, Title: "Steady Hand", Description: "Reach 80% consistency", MaxProgress: 80},
		{ID: "first-goal", Kind: FirstGoal, Title: "Goal Getter", Description: "Complete your first goal", MaxProgress: 1},
		{ID: "positive-momentum", Kind: PositiveMomentum, Title: "Momentum", Description: "Have positive recent growth", MaxProgress: 1},
	}
}

// Merge returns stored with any default achievements it lacks appended.
// Stored records win for IDs present in both.
func Merge(stored []Achievement) []Achievement {
	seen := make(map[string]bool, len(stored))
	out := make([]Achievement, 0, len(stored))
	for _, a := range stored {
		seen[a.ID] = true
		out = append(out, a)
	}
	for _, a := range Defaults() {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
