package tracker

import (
	"github.com/banshee-data/progress.report/internal/achievement"
	"github.com/banshee-data/progress.report/internal/goals"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/monitoring"
)

// Notifier turns tracker outcomes into user-facing notifications. The
// tracker calls it after state has been committed; implementations must not
// call back into the Tracker.
type Notifier interface {
	SnapshotSaved(s measure.Snapshot)
	GoalsChanged(transitioned []goals.Goal)
	AchievementsUnlocked(unlocked []achievement.Achievement)
	Failed(op string, err error)
}

// LogNotifier writes notifications to the ops log.
type LogNotifier struct{}

func (LogNotifier) SnapshotSaved(s measure.Snapshot) {
	monitoring.Opsf("snapshot %s saved at %s", s.ID, s.Timestamp.Format("2006-01-02 15:04"))
}

func (LogNotifier) GoalsChanged(transitioned []goals.Goal) {
	for _, g := range transitioned {
		monitoring.Opsf("goal %s (%s %.2f) is now %s", g.ID, g.Kind, g.TargetValue, g.Status)
	}
}

func (LogNotifier) AchievementsUnlocked(unlocked []achievement.Achievement) {
	for _, a := range unlocked {
		monitoring.Opsf("achievement unlocked: %s", a.Title)
	}
}

func (LogNotifier) Failed(op string, err error) {
	monitoring.Opsf("%s failed: %v", op, err)
}

type nopNotifier struct{}

func (nopNotifier) SnapshotSaved(measure.Snapshot)                 {}
func (nopNotifier) GoalsChanged([]goals.Goal)                      {}
func (nopNotifier) AchievementsUnlocked([]achievement.Achievement) {}
func (nopNotifier) Failed(string, error)                           {}
