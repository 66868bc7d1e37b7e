package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sectioncat/internal/secerr"
)

func TestLoadParsesDatabaseAndWebBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
database:
  pg_ip: 10.0.0.5
  pg_port: "5433"
  pg_user: catalog
  pg_secret: hunter2
  pg_db: sectioncat
web:
  web_host: 0.0.0.0
  web_port: "8080"
  web_protocol: https
detection:
  proximity_threshold_m: 30
  min_activities: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write fixture config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != "5433" {
		t.Fatalf("unexpected database block: %+v", cfg.Database)
	}
	if cfg.Web.Protocol != "https" {
		t.Fatalf("expected https protocol, got %q", cfg.Web.Protocol)
	}
	if cfg.Detection.ProximityThreshold != 30 || cfg.Detection.MinActivities != 3 {
		t.Fatalf("unexpected detection block: %+v", cfg.Detection)
	}
}

func TestLoadMissingFileReturnsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	var se *secerr.Error
	if !errors.As(err, &se) || se.Kind != secerr.ConfigError {
		t.Fatalf("expected a secerr ConfigError, got %v", err)
	}
}

func TestToSectionsConfigFillsZeroFieldsFromDefault(t *testing.T) {
	d := Detection{MinActivities: 5}
	cfg := d.ToSectionsConfig()

	if cfg.MinActivities != 5 {
		t.Fatalf("expected overridden MinActivities 5, got %d", cfg.MinActivities)
	}
	if cfg.ProximityThreshold == 0 {
		t.Fatal("expected ProximityThreshold to fall back to the default, not stay zero")
	}
	if !cfg.IncludePotentials {
		t.Fatal("expected IncludePotentials to fall back to the default (true) when unset")
	}
}

func TestToSectionsConfigHonorsExplicitFalseOverride(t *testing.T) {
	f := false
	d := Detection{IncludePotentials: &f}
	cfg := d.ToSectionsConfig()
	if cfg.IncludePotentials {
		t.Fatal("expected an explicit false override to stick, not fall back to the default")
	}
}

func TestToSectionsConfigMapsScalePresets(t *testing.T) {
	d := Detection{
		Scales: []ScalePreset{
			{Name: "short", MinLength: 100, MaxLength: 400, MinActivities: 2},
			{Name: "long", MinLength: 2000, MaxLength: 6000, MinActivities: 3},
		},
	}
	cfg := d.ToSectionsConfig()
	if len(cfg.ScalePresets) != 2 {
		t.Fatalf("expected 2 scale presets, got %d", len(cfg.ScalePresets))
	}
	if cfg.ScalePresets[1].Name != "long" || cfg.ScalePresets[1].MinActivities != 3 {
		t.Fatalf("unexpected second preset: %+v", cfg.ScalePresets[1])
	}
}

func TestToMatchingConfigFillsZeroFieldsFromDefault(t *testing.T) {
	m := Matching{MinMatchPercentage: 85}
	cfg := m.ToMatchingConfig()
	if cfg.MinMatchPercentage != 85 {
		t.Fatalf("expected overridden MinMatchPercentage 85, got %v", cfg.MinMatchPercentage)
	}
	if cfg.ResampleCount == 0 {
		t.Fatal("expected ResampleCount to fall back to the default, not stay zero")
	}
}
