package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/projection"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if got := cfg.GetBaselinePixels(); got != 50 {
		t.Errorf("GetBaselinePixels() = %v, want 50", got)
	}
	if got := cfg.GetDisplayUnit(); got != "cm" {
		t.Errorf("GetDisplayUnit() = %q, want cm", got)
	}
	if got := cfg.GetMomentumWindow(); got != 3 {
		t.Errorf("GetMomentumWindow() = %d, want 3", got)
	}
	if got := cfg.GetDetectorTimeout(); got != 5*time.Second {
		t.Errorf("GetDetectorTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetLocation(); got != time.UTC {
		t.Errorf("GetLocation() = %v, want UTC", got)
	}
	if got := cfg.GetStorePassphrase(); got != "" {
		t.Errorf("GetStorePassphrase() = %q, want empty", got)
	}
	if got := cfg.ProjectionOptions(); got != projection.DefaultOptions() {
		t.Errorf("ProjectionOptions() = %+v, want defaults", got)
	}
	sizes := cfg.GetReferenceSizes()
	if sizes[calibration.AxisLength] != 2.5 || sizes[calibration.AxisGirth] != 2.5 {
		t.Errorf("GetReferenceSizes() = %v", sizes)
	}
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	file := MustLoadDefaultConfig()
	empty := EmptyConfig()

	if file.GetBaselinePixels() != empty.GetBaselinePixels() {
		t.Errorf("baseline_pixels: file %v, code %v", file.GetBaselinePixels(), empty.GetBaselinePixels())
	}
	if file.GetMomentumWindow() != empty.GetMomentumWindow() {
		t.Errorf("momentum_window: file %d, code %d", file.GetMomentumWindow(), empty.GetMomentumWindow())
	}
	if file.GetDetectorTimeout() != empty.GetDetectorTimeout() {
		t.Errorf("detector_timeout: file %v, code %v", file.GetDetectorTimeout(), empty.GetDetectorTimeout())
	}
	if file.ProjectionOptions() != empty.ProjectionOptions() {
		t.Errorf("projection: file %+v, code %+v", file.ProjectionOptions(), empty.ProjectionOptions())
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "custom.json", `{
  "baseline_pixels": 80,
  "display_unit": "in",
  "timezone": "Europe/London",
  "reference_girth_cm": 3.1,
  "momentum_window": 5,
  "projection_steps": 4,
  "projection_interval": "24h",
  "projection_band": 0.2
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetBaselinePixels() != 80 {
		t.Errorf("baseline = %v, want 80", cfg.GetBaselinePixels())
	}
	if cfg.GetDisplayUnit() != "in" {
		t.Errorf("display unit = %q, want in", cfg.GetDisplayUnit())
	}
	if cfg.GetLocation().String() != "Europe/London" {
		t.Errorf("location = %v", cfg.GetLocation())
	}
	if cfg.GetReferenceSizes()[calibration.AxisGirth] != 3.1 {
		t.Errorf("girth reference = %v", cfg.GetReferenceSizes())
	}
	if cfg.AnalyticsOptions().MomentumWindow != 5 {
		t.Errorf("momentum window = %d", cfg.AnalyticsOptions().MomentumWindow)
	}

	o := cfg.ProjectionOptions()
	if o.Steps != 4 || o.StepInterval != 24*time.Hour || o.Band != 0.2 {
		t.Errorf("projection options = %+v", o)
	}
	if o.DecayPerStep != projection.DefaultDecayPerStep {
		t.Errorf("unset decay should keep the default, got %v", o.DecayPerStep)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "config.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{`, "parse"},
		{"unknown unit", "unit.json", `{"display_unit": "furlong"}`, "display_unit"},
		{"bad timezone", "tz.json", `{"timezone": "Mars/Olympus"}`, "timezone"},
		{"zero baseline", "base.json", `{"baseline_pixels": 0}`, "baseline_pixels"},
		{"negative reference", "ref.json", `{"reference_length_cm": -2}`, "reference_length_cm"},
		{"bad duration", "dur.json", `{"detector_timeout": "soon"}`, "detector_timeout"},
		{"negative interval", "neg.json", `{"projection_interval": "-1h"}`, "projection_interval"},
		{"zero window", "win.json", `{"momentum_window": 0}`, "momentum_window"},
		{"zero steps", "steps.json", `{"projection_steps": 0}`, "projection_steps"},
		{"band out of range", "band.json", `{"projection_band": 1.5}`, "projection_band"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigTooLarge(t *testing.T) {
	body := `{"display_unit": "cm"` + strings.Repeat(" ", 1024*1024) + `}`
	if _, err := LoadConfig(writeConfig(t, "big.json", body)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("err = %v, want too large", err)
	}
}

func TestGetStorePassphrase(t *testing.T) {
	t.Setenv("TEST_PROGRESS_PASSPHRASE", "hunter2")
	cfg := &Config{StorePassphraseEnv: ptrString("TEST_PROGRESS_PASSPHRASE")}
	if got := cfg.GetStorePassphrase(); got != "hunter2" {
		t.Errorf("GetStorePassphrase() = %q", got)
	}
}

func TestPointerFieldsOverride(t *testing.T) {
	cfg := &Config{
		BaselinePixels:            ptrFloat64(64),
		MomentumWindow:            ptrInt(2),
		ProjectionConfidenceFloor: ptrFloat64(0.5),
		ProjectionInterval:        ptrString("not-a-duration"),
	}
	if cfg.GetBaselinePixels() != 64 || cfg.GetMomentumWindow() != 2 {
		t.Errorf("overrides ignored: %v %v", cfg.GetBaselinePixels(), cfg.GetMomentumWindow())
	}
	o := cfg.ProjectionOptions()
	if o.ConfidenceFloor != 0.5 {
		t.Errorf("confidence floor = %v", o.ConfidenceFloor)
	}
	if o.StepInterval != projection.DefaultStepInterval {
		t.Errorf("unparseable interval should fall back, got %v", o.StepInterval)
	}
}
