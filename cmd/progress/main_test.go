package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/progress.report/internal/config"
	"github.com/banshee-data/progress.report/internal/measure"
	"github.com/banshee-data/progress.report/internal/report"
	"github.com/banshee-data/progress.report/internal/security"
)

func seedDB(t *testing.T, path string) {
	t.Helper()
	tr, database, err := openTracker(context.Background(), path, config.EmptyConfig(), nil)
	if err != nil {
		t.Fatalf("openTracker: %v", err)
	}
	defer database.Close()
	for _, v := range []float64{10, 10.4} {
		if _, err := tr.SaveSnapshot(context.Background(), tr.NewSnapshot(measure.Float(v), measure.Float(v-2))); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
}

func TestRunReport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "progress.db")
	seedDB(t, dbPath)

	for _, format := range []string{"html", "png"} {
		t.Run(format, func(t *testing.T) {
			out := filepath.Join(dir, "report."+format)
			var buf bytes.Buffer
			if err := runReport([]string{"-db", dbPath, "-format", format, "-out", out}, &buf); err != nil {
				t.Fatalf("runReport: %v", err)
			}
			if !strings.Contains(buf.String(), "2 snapshots") {
				t.Errorf("output = %q", buf.String())
			}
			info, err := os.Stat(out)
			if err != nil || info.Size() == 0 {
				t.Fatalf("report file missing or empty: %v", err)
			}
		})
	}
}

func TestRunReport_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.db")
	out := filepath.Join(dir, "out.html")

	err := runReport([]string{"-db", empty, "-out", out}, &bytes.Buffer{})
	if !errors.Is(err, report.ErrNoData) {
		t.Errorf("empty database: got %v, want ErrNoData", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("failed render left a file behind")
	}

	if err := runReport([]string{"-db", empty, "-axis", "area"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for area axis")
	}
	if err := runReport([]string{"-db", empty, "-format", "pdf", "-out", out}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := runReport([]string{"-db", empty, "-config", filepath.Join(dir, "missing.json"), "-out", out}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing config")
	}
	if err := runReport([]string{"-db", empty, "-out", "/proc/self/out.html"}, &bytes.Buffer{}); !errors.Is(err, security.ErrOutsideAllowedDirs) {
		t.Errorf("export outside allowed dirs: got %v", err)
	}
}

func TestRunMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "progress.db")
	var buf bytes.Buffer
	if err := runMigrate([]string{"-db", dbPath, "up"}, &buf); err != nil {
		t.Fatalf("runMigrate up: %v", err)
	}
	if !strings.Contains(buf.String(), "current version: 2") {
		t.Errorf("output = %q", buf.String())
	}
	if err := runMigrate([]string{"-db", dbPath}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without an action")
	}
}

func TestOpenTracker_SealedSettings(t *testing.T) {
	t.Setenv("PROGRESS_STORE_PASSPHRASE", "correct horse")
	cfg := config.MustLoadDefaultConfig()
	dbPath := filepath.Join(t.TempDir(), "progress.db")

	tr, database, err := openTracker(context.Background(), dbPath, cfg, nil)
	if err != nil {
		t.Fatalf("openTracker: %v", err)
	}
	defer database.Close()

	if _, err := tr.SaveSnapshot(context.Background(), tr.NewSnapshot(measure.Float(9), nil)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	var raw []byte
	if err := database.QueryRow(`SELECT value FROM kv WHERE key = 'achievements'`).Scan(&raw); err != nil {
		t.Fatalf("read kv: %v", err)
	}
	if bytes.Contains(raw, []byte("first-measurement")) {
		t.Error("achievements stored in the clear despite a passphrase")
	}
}
