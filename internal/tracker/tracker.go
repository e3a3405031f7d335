// Package tracker owns the persisted progress state (snapshots, goals,
// achievements, settings) and keeps the derived state consistent whenever a
// snapshot or goal changes.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/progress.report/internal/achievement"
	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/config"
	"github.com/banshee-data/progress.report/internal/goals"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/monitoring"
	"github.com/banshee-data/progress.report/internal/projection"
	"github.com/banshee-data/progress.report/internal/store"
	"github.com/banshee-data/progress.report/internal/timeutil"
	"github.com/banshee-data/progress.report/internal/units"
)

// ErrInvalidSettings is returned by UpdateSettings.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the user preferences kept in the key-value store. Unset
// reference sizes fall back to the configuration.
type Settings struct {
	DisplayUnit       string   `json:"display_unit"`
	ReferenceLengthCM *float64 `json:"reference_length_cm,omitempty"`
	ReferenceGirthCM  *float64 `json:"reference_girth_cm,omitempty"`
}

// Outcome reports what a state change caused.
type Outcome struct {
	Snapshot     *measure.Snapshot         `json:"snapshot,omitempty"`
	Transitioned []goals.Goal              `json:"goals_changed"`
	Unlocked     []achievement.Achievement `json:"newly_unlocked"`
}

// Options configures a Tracker. Records and KV are required.
type Options struct {
	Records   store.RecordStore
	KV        store.KVStore
	Config    *config.Config
	Clock     timeutil.Clock
	Notifier  Notifier
	Evaluator *achievement.Evaluator
}

// Tracker is safe for concurrent use.
type Tracker struct {
	records store.RecordStore
	kv      store.KVStore
	cfg     *config.Config
	clock   timeutil.Clock
	notify  Notifier
	eval    *achievement.Evaluator

	mu           sync.Mutex
	snapshots    []measure.Snapshot // timestamp order
	goals        []goals.Goal
	achievements []achievement.Achievement
	settings     Settings
}

// New returns a Tracker with empty state. Call Load before serving.
func New(opts Options) *Tracker {
	t := &Tracker{
		records:      opts.Records,
		kv:           opts.KV,
		cfg:          opts.Config,
		clock:        opts.Clock,
		notify:       opts.Notifier,
		eval:         opts.Evaluator,
		snapshots:    []measure.Snapshot{},
		goals:        []goals.Goal{},
		achievements: achievement.Defaults(),
	}
	if t.cfg == nil {
		t.cfg = config.EmptyConfig()
	}
	if t.clock == nil {
		t.clock = timeutil.RealClock{}
	}
	if t.notify == nil {
		t.notify = nopNotifier{}
	}
	if t.eval == nil {
		t.eval = achievement.NewEvaluator()
	}
	t.settings.DisplayUnit = t.cfg.GetDisplayUnit()
	return t
}

// Load reads snapshots and the key-value blobs concurrently, then brings
// goals and achievements up to date with the loaded snapshots.
func (t *Tracker) Load(ctx context.Context) error {
	var (
		snaps    []measure.Snapshot
		gs       []goals.Goal
		stored   []achievement.Achievement
		settings Settings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snaps, err = t.records.GetAll(gctx)
		return err
	})
	g.Go(func() error {
		_, err := store.GetJSON(gctx, t.kv, store.KeyGoals, &gs)
		return err
	})
	g.Go(func() error {
		_, err := store.GetJSON(gctx, t.kv, store.KeyAchievements, &stored)
		return err
	})
	g.Go(func() error {
		_, err := store.GetJSON(gctx, t.kv, store.KeySettings, &settings)
		return err
	})
	if err := g.Wait(); err != nil {
		t.notify.Failed("load", err)
		return fmt.Errorf("load tracker state: %w", err)
	}
	if gs == nil {
		gs = []goals.Goal{}
	}
	if settings.DisplayUnit == "" {
		settings.DisplayUnit = t.cfg.GetDisplayUnit()
	}

	t.mu.Lock()
	t.snapshots = analytics.Sorted(snaps)
	t.goals = gs
	t.achievements = achievement.Merge(stored)
	t.settings = settings
	out, err := t.refreshLocked(ctx)
	t.mu.Unlock()

	if err != nil {
		t.notify.Failed("load", err)
		return err
	}
	monitoring.Opsf("loaded %d snapshots, %d goals", len(snaps), len(gs))
	t.publish(out)
	return nil
}

// NewSnapshot stamps a snapshot with the tracker clock.
func (t *Tracker) NewSnapshot(length, girth *float64) measure.Snapshot {
	return measure.NewSnapshot(t.clock.Now(), length, girth)
}

// SaveSnapshot validates and persists s, then refreshes goals and
// achievements. Invalid snapshots are rejected with measure.ErrInvalidSnapshot
// before anything is written. Saving an existing ID replaces it. If the
// goals or achievements cannot be persisted the record write is undone, so
// a retry never leaves a duplicate behind.
func (t *Tracker) SaveSnapshot(ctx context.Context, s measure.Snapshot) (Outcome, error) {
	if err := s.Validate(); err != nil {
		return Outcome{}, err
	}

	t.mu.Lock()
	prev, existed := t.findLocked(s.ID)
	if _, err := t.records.Save(ctx, s); err != nil {
		t.mu.Unlock()
		t.notify.Failed("save snapshot", err)
		return Outcome{}, err
	}
	before := t.snapshots
	t.snapshots = upsert(t.snapshots, s)
	out, err := t.refreshLocked(ctx)
	if err != nil {
		t.snapshots = before
		var rbErr error
		if existed {
			_, rbErr = t.records.Save(context.WithoutCancel(ctx), prev)
		} else {
			rbErr = t.records.Delete(context.WithoutCancel(ctx), s.ID)
		}
		if rbErr != nil {
			monitoring.Opsf("failed to roll back snapshot %s: %v", s.ID, rbErr)
		}
	}
	t.mu.Unlock()

	if err != nil {
		t.notify.Failed("save snapshot", err)
		return Outcome{}, err
	}
	out.Snapshot = &s
	t.notify.SnapshotSaved(s)
	t.publish(out)
	return out, nil
}

// DeleteSnapshot removes the snapshot with id. Unknown ids yield
// store.ErrNotFound. Unlocked achievements stay unlocked.
func (t *Tracker) DeleteSnapshot(ctx context.Context, id string) (Outcome, error) {
	t.mu.Lock()
	removed, _ := t.findLocked(id)
	if err := t.records.Delete(ctx, id); err != nil {
		t.mu.Unlock()
		if !errors.Is(err, store.ErrNotFound) {
			t.notify.Failed("delete snapshot", err)
		}
		return Outcome{}, err
	}
	before := t.snapshots
	kept := t.snapshots[:0:0]
	for _, s := range t.snapshots {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	t.snapshots = kept
	out, err := t.refreshLocked(ctx)
	if err != nil {
		t.snapshots = before
		if _, rbErr := t.records.Save(context.WithoutCancel(ctx), removed); rbErr != nil {
			monitoring.Opsf("failed to restore snapshot %s: %v", id, rbErr)
		}
	}
	t.mu.Unlock()

	if err != nil {
		t.notify.Failed("delete snapshot", err)
		return Outcome{}, err
	}
	t.publish(out)
	return out, nil
}

// Snapshots returns a copy of all snapshots in timestamp order.
func (t *Tracker) Snapshots() []measure.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]measure.Snapshot{}, t.snapshots...)
}

// Metrics aggregates the current snapshots as of now.
func (t *Tracker) Metrics() analytics.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metricsLocked(t.clock.Now())
}

// Summary returns per-axis summary statistics.
func (t *Tracker) Summary() analytics.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return analytics.Summarize(t.snapshots)
}

// Weekly returns weekly rollups in the configured timezone.
func (t *Tracker) Weekly() []analytics.Week {
	t.mu.Lock()
	defer t.mu.Unlock()
	return analytics.Weekly(t.snapshots, t.cfg.GetLocation())
}

// Projection projects axis forward with the configured constants.
func (t *Tracker) Projection(axis measure.Kind) ([]projection.Step, error) {
	return projection.Project(t.Metrics(), axis, t.cfg.ProjectionOptions())
}

// Goals returns a copy of all goals.
func (t *Tracker) Goals() []goals.Goal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]goals.Goal{}, t.goals...)
}

// CreateGoal adds an Active goal for kind, seeded with the latest measured
// value of that axis. A goal already met is completed immediately.
func (t *Tracker) CreateGoal(ctx context.Context, kind measure.Kind, target float64, targetDate time.Time) (goals.Goal, Outcome, error) {
	t.mu.Lock()
	current := 0.0
	for _, s := range t.snapshots {
		if v, ok := s.Axis(kind); ok {
			current = v
		}
	}
	g, err := goals.New(t.clock.Now(), kind, target, current, targetDate)
	if err != nil {
		t.mu.Unlock()
		return goals.Goal{}, Outcome{}, err
	}
	prev := t.goals
	t.goals = append(append([]goals.Goal{}, t.goals...), g)
	out, err := t.refreshLocked(ctx)
	if err != nil {
		t.goals = prev
		t.mu.Unlock()
		t.notify.Failed("create goal", err)
		return goals.Goal{}, Outcome{}, err
	}
	for _, stored := range t.goals {
		if stored.ID == g.ID {
			g = stored
		}
	}
	t.mu.Unlock()

	t.publish(out)
	return g, out, nil
}

// DeleteGoal removes the goal with id. Unknown ids yield store.ErrNotFound.
func (t *Tracker) DeleteGoal(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := make([]goals.Goal, 0, len(t.goals))
	for _, g := range t.goals {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	if len(kept) == len(t.goals) {
		return store.ErrNotFound
	}
	if err := store.SetJSON(ctx, t.kv, store.KeyGoals, kept); err != nil {
		t.notify.Failed("delete goal", err)
		return err
	}
	t.goals = kept
	return nil
}

// Achievements returns a copy of all achievements.
func (t *Tracker) Achievements() []achievement.Achievement {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]achievement.Achievement{}, t.achievements...)
}

// Settings returns the current user preferences.
func (t *Tracker) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// UpdateSettings validates and persists s.
func (t *Tracker) UpdateSettings(ctx context.Context, s Settings) error {
	if s.DisplayUnit == "" {
		s.DisplayUnit = t.cfg.GetDisplayUnit()
	}
	if !units.IsValid(s.DisplayUnit) {
		return fmt.Errorf("%w: display unit %q (valid: %s)", ErrInvalidSettings, s.DisplayUnit, units.GetValidUnitsString())
	}
	for name, v := range map[string]*float64{"reference_length_cm": s.ReferenceLengthCM, "reference_girth_cm": s.ReferenceGirthCM} {
		if v != nil && !(*v > 0) {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidSettings, name)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := store.SetJSON(ctx, t.kv, store.KeySettings, s); err != nil {
		t.notify.Failed("update settings", err)
		return err
	}
	t.settings = s
	return nil
}

// ReferenceSizes returns the reference object sizes, settings first.
func (t *Tracker) ReferenceSizes() map[calibration.Axis]float64 {
	sizes := t.cfg.GetReferenceSizes()
	s := t.Settings()
	if s.ReferenceLengthCM != nil {
		sizes[calibration.AxisLength] = *s.ReferenceLengthCM
	}
	if s.ReferenceGirthCM != nil {
		sizes[calibration.AxisGirth] = *s.ReferenceGirthCM
	}
	return sizes
}

// Sweep re-evaluates goals and achievements against the clock, expiring
// goals whose target date has passed.
func (t *Tracker) Sweep(ctx context.Context) error {
	t.mu.Lock()
	out, err := t.refreshLocked(ctx)
	t.mu.Unlock()
	if err != nil {
		t.notify.Failed("sweep", err)
		return err
	}
	t.publish(out)
	return nil
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are
// logged and do not stop the loop.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	ticker := t.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := t.Sweep(ctx); err != nil {
				monitoring.Diagf("sweep: %v", err)
			}
		}
	}
}

func (t *Tracker) metricsLocked(now time.Time) analytics.Metrics {
	return analytics.AggregateWith(t.snapshots, now, t.cfg.AnalyticsOptions())
}

// refreshLocked recomputes goals and achievements and persists both. The
// in-memory state only changes once both writes succeed; a failed
// achievements write puts the previous goals back.
func (t *Tracker) refreshLocked(ctx context.Context) (Outcome, error) {
	now := t.clock.Now()
	gs, transitioned := goals.Refresh(t.goals, t.snapshots, now)
	res := t.eval.Evaluate(t.achievements, achievement.Input{
		Metrics:       t.metricsLocked(now),
		Goals:         gs,
		SnapshotCount: len(t.snapshots),
	}, now)

	if err := store.SetJSON(ctx, t.kv, store.KeyGoals, gs); err != nil {
		return Outcome{}, err
	}
	if err := store.SetJSON(ctx, t.kv, store.KeyAchievements, res.Achievements); err != nil {
		if rbErr := store.SetJSON(context.WithoutCancel(ctx), t.kv, store.KeyGoals, t.goals); rbErr != nil {
			monitoring.Opsf("failed to restore goals: %v", rbErr)
		}
		return Outcome{}, err
	}
	t.goals = gs
	t.achievements = res.Achievements

	out := Outcome{Transitioned: transitioned, Unlocked: res.Unlocked}
	if out.Transitioned == nil {
		out.Transitioned = []goals.Goal{}
	}
	if out.Unlocked == nil {
		out.Unlocked = []achievement.Achievement{}
	}
	return out, nil
}

func (t *Tracker) findLocked(id string) (measure.Snapshot, bool) {
	for _, s := range t.snapshots {
		if s.ID == id {
			return s, true
		}
	}
	return measure.Snapshot{}, false
}

func (t *Tracker) publish(out Outcome) {
	if len(out.Transitioned) > 0 {
		t.notify.GoalsChanged(out.Transitioned)
	}
	if len(out.Unlocked) > 0 {
		t.notify.AchievementsUnlocked(out.Unlocked)
	}
}

// upsert replaces the snapshot with s.ID or inserts s, keeping timestamp
// order.
func upsert(snaps []measure.Snapshot, s measure.Snapshot) []measure.Snapshot {
	out := make([]measure.Snapshot, 0, len(snaps)+1)
	for _, existing := range snaps {
		if existing.ID != s.ID {
			out = append(out, existing)
		}
	}
	return analytics.Sorted(append(out, s))
}
