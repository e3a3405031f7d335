package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/progress.report/internal/analytics"
	"github.com/banshee-data/progress.report/internal/calibration"
	"github.com/banshee-data/progress.report/internal/projection"
	"github.com/banshee-data/progress.report/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/progress.defaults.json"

// Config is the runtime configuration. Every field is optional; the Get*
// methods supply the default for anything left unset, so partial files are
// safe.
type Config struct {
	// Calibration
	BaselinePixels    *float64 `json:"baseline_pixels,omitempty"`
	ReferenceLengthCM *float64 `json:"reference_length_cm,omitempty"`
	ReferenceGirthCM  *float64 `json:"reference_girth_cm,omitempty"`

	// Display
	DisplayUnit *string `json:"display_unit,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`

	// Detector
	DetectorURL     *string `json:"detector_url,omitempty"`
	DetectorTimeout *string `json:"detector_timeout,omitempty"` // duration string like "5s"

	// Analytics and projection
	MomentumWindow            *int     `json:"momentum_window,omitempty"`
	ProjectionSteps           *int     `json:"projection_steps,omitempty"`
	ProjectionInterval        *string  `json:"projection_interval,omitempty"` // duration string like "168h"
	ProjectionDecay           *float64 `json:"projection_decay,omitempty"`
	ProjectionConfidenceFloor *float64 `json:"projection_confidence_floor,omitempty"`
	ProjectionBand            *float64 `json:"projection_band,omitempty"`

	// StorePassphraseEnv names the environment variable holding the
	// passphrase for the sealed key-value store. Empty disables sealing.
	StorePassphraseEnv *string `json:"store_passphrase_env,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with every field unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig reads a Config from a JSON file. The file must have a .json
// extension and be at most 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics on failure and is meant for tests.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	for name, v := range map[string]*float64{
		"baseline_pixels":     c.BaselinePixels,
		"reference_length_cm": c.ReferenceLengthCM,
		"reference_girth_cm":  c.ReferenceGirthCM,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.DisplayUnit != nil && !units.IsValid(*c.DisplayUnit) {
		return fmt.Errorf("invalid display_unit %q", *c.DisplayUnit)
	}
	if c.Timezone != nil {
		if _, err := units.LoadTimezone(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", *c.Timezone, err)
		}
	}
	for name, v := range map[string]*string{
		"detector_timeout":    c.DetectorTimeout,
		"projection_interval": c.ProjectionInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	if c.MomentumWindow != nil && *c.MomentumWindow < 1 {
		return fmt.Errorf("momentum_window must be at least 1, got %d", *c.MomentumWindow)
	}
	if c.ProjectionSteps != nil && *c.ProjectionSteps < 1 {
		return fmt.Errorf("projection_steps must be at least 1, got %d", *c.ProjectionSteps)
	}
	for name, v := range map[string]*float64{
		"projection_decay":            c.ProjectionDecay,
		"projection_confidence_floor": c.ProjectionConfidenceFloor,
		"projection_band":             c.ProjectionBand,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	return nil
}

// GetBaselinePixels returns the assumed reference span in pixels.
func (c *Config) GetBaselinePixels() float64 {
	if c.BaselinePixels == nil {
		return calibration.DefaultBaselinePixels
	}
	return *c.BaselinePixels
}

// GetReferenceSizes returns the real size of the reference object per axis.
func (c *Config) GetReferenceSizes() map[calibration.Axis]float64 {
	sizes := map[calibration.Axis]float64{
		calibration.AxisLength: 2.5,
		calibration.AxisGirth:  2.5,
	}
	if c.ReferenceLengthCM != nil {
		sizes[calibration.AxisLength] = *c.ReferenceLengthCM
	}
	if c.ReferenceGirthCM != nil {
		sizes[calibration.AxisGirth] = *c.ReferenceGirthCM
	}
	return sizes
}

// GetDisplayUnit returns the unit used for labels and reports.
func (c *Config) GetDisplayUnit() string {
	if c.DisplayUnit == nil {
		return units.CM
	}
	return *c.DisplayUnit
}

// GetLocation returns the timezone for weekly rollups, UTC on error.
func (c *Config) GetLocation() *time.Location {
	if c.Timezone == nil {
		return time.UTC
	}
	loc, err := units.LoadTimezone(*c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetDetectorURL returns the remote detector endpoint, or "" for none.
func (c *Config) GetDetectorURL() string {
	if c.DetectorURL == nil {
		return ""
	}
	return *c.DetectorURL
}

// GetDetectorTimeout parses DetectorTimeout.
func (c *Config) GetDetectorTimeout() time.Duration {
	return parseDuration(c.DetectorTimeout, 5*time.Second)
}

// GetMomentumWindow returns the momentum window.
func (c *Config) GetMomentumWindow() int {
	if c.MomentumWindow == nil {
		return analytics.DefaultMomentumWindow
	}
	return *c.MomentumWindow
}

// AnalyticsOptions returns the aggregator options.
func (c *Config) AnalyticsOptions() analytics.Options {
	return analytics.Options{MomentumWindow: c.GetMomentumWindow()}
}

// ProjectionOptions returns the projector options with defaults filled in.
func (c *Config) ProjectionOptions() projection.Options {
	o := projection.DefaultOptions()
	if c.ProjectionSteps != nil {
		o.Steps = *c.ProjectionSteps
	}
	o.StepInterval = parseDuration(c.ProjectionInterval, projection.DefaultStepInterval)
	if c.ProjectionDecay != nil {
		o.DecayPerStep = *c.ProjectionDecay
	}
	if c.ProjectionConfidenceFloor != nil {
		o.ConfidenceFloor = *c.ProjectionConfidenceFloor
	}
	if c.ProjectionBand != nil {
		o.Band = *c.ProjectionBand
	}
	return o
}

// GetStorePassphrase reads the passphrase from the configured environment
// variable. An empty result means the key-value store is not sealed.
func (c *Config) GetStorePassphrase() string {
	if c.StorePassphraseEnv == nil || *c.StorePassphraseEnv == "" {
		return ""
	}
	return os.Getenv(*c.StorePassphraseEnv)
}

func parseDuration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
