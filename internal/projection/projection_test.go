package projection

import (
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/measure"
)

const eps = 1e-9

func near(a, b float64) bool {
	d := a - b
	return d < eps && d > -eps
}

func TestProjectValue_FirstStep(t *testing.T) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	steps := ProjectValue(10, 2, from, Options{})
	if len(steps) != 12 {
		t.Fatalf("got %d steps, want 12", len(steps))
	}
	s := steps[0]
	if !near(s.PredictedGrowth, 1.9) {
		t.Errorf("PredictedGrowth = %v, want 1.9", s.PredictedGrowth)
	}
	if !near(s.PredictedValue, 10.19) {
		t.Errorf("PredictedValue = %v, want 10.19", s.PredictedValue)
	}
	if !near(s.Confidence, 0.95) {
		t.Errorf("Confidence = %v, want 0.95", s.Confidence)
	}
	if !near(s.Low, 9.171) || !near(s.High, 11.209) {
		t.Errorf("range = [%v, %v], want [9.171, 11.209]", s.Low, s.High)
	}
	if !s.Date.Equal(from.Add(7 * 24 * time.Hour)) {
		t.Errorf("Date = %v", s.Date)
	}
}

func TestProjectValue_Horizon(t *testing.T) {
	steps := ProjectValue(10, 2, time.Time{}, Options{})
	for i, s := range steps {
		n := float64(i + 1)
		if s.Index != i+1 {
			t.Errorf("step %d: Index = %d", i, s.Index)
		}
		wantConf := 1 - n*0.05
		if wantConf < 0.3 {
			wantConf = 0.3
		}
		if !near(s.Confidence, wantConf) {
			t.Errorf("step %d: Confidence = %v, want %v", i+1, s.Confidence, wantConf)
		}
		if !near(s.Low, s.PredictedValue*0.9) || !near(s.High, s.PredictedValue*1.1) {
			t.Errorf("step %d: band not fixed at 10%%", i+1)
		}
		if i > 0 && s.PredictedGrowth >= steps[i-1].PredictedGrowth {
			t.Errorf("step %d: growth should decay", i+1)
		}
	}
	last := steps[11]
	if !near(last.Confidence, 0.4) {
		t.Errorf("step 12 confidence = %v, want 0.4", last.Confidence)
	}
}

func TestProjectValue_FloorAndNegativeGrowth(t *testing.T) {
	steps := ProjectValue(10, 2, time.Time{}, Options{Steps: 25})
	if !near(steps[19].PredictedGrowth, 0) {
		t.Errorf("step 20 growth = %v, want 0", steps[19].PredictedGrowth)
	}
	if steps[24].PredictedGrowth >= 0 {
		t.Errorf("step 25 growth = %v, want negative", steps[24].PredictedGrowth)
	}
	if !near(steps[24].Confidence, 0.3) {
		t.Errorf("step 25 confidence = %v, want floor 0.3", steps[24].Confidence)
	}
}

func TestProject(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l1, l2 := 10.0, 10.2
	snaps := []measure.Snapshot{
		{ID: "a", Timestamp: t0, Length: &l1},
		{ID: "b", Timestamp: t0.AddDate(0, 0, 7), Length: &l2},
	}
	m := analytics.Aggregate(snaps, t0.AddDate(0, 0, 8))

	steps, err := Project(m, measure.Length, Options{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := ProjectValue(10.2, m.AverageGrowth, snaps[1].Timestamp, Options{})
	for i := range want {
		if !near(steps[i].PredictedValue, want[i].PredictedValue) {
			t.Errorf("step %d: %v != %v", i, steps[i].PredictedValue, want[i].PredictedValue)
		}
	}

	if _, err := Project(m, measure.Girth, Options{}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("missing axis: err = %v", err)
	}
}

func TestProject_InsufficientData(t *testing.T) {
	l := 10.0
	for _, snaps := range [][]measure.Snapshot{
		nil,
		{{ID: "a", Timestamp: time.Now(), Length: &l}},
	} {
		m := analytics.Aggregate(snaps, time.Now())
		if _, err := Project(m, measure.Length, Options{}); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("%d snapshots: err = %v, want ErrInsufficientData", len(snaps), err)
		}
		if !errors.Is(ErrInsufficientData, analytics.ErrInsufficientData) {
			t.Error("sentinel must match analytics")
		}
	}
}
