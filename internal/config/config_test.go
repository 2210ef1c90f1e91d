package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fredhutch/phiscan/internal/patterns"
	"github.com/fredhutch/phiscan/internal/risk"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default host = %q", cfg.Server.Host)
	}
	if cfg.Engine.Workers != 4 {
		t.Errorf("default workers = %d", cfg.Engine.Workers)
	}
	if cfg.Models.CallTimeout != 10*time.Second {
		t.Errorf("default call timeout = %v", cfg.Models.CallTimeout)
	}
	if cfg.Risk.Thresholds != risk.DefaultThresholds() {
		t.Errorf("default thresholds = %+v", cfg.Risk.Thresholds)
	}
	if cfg.Risk.RuleOnlyConfidence != risk.RuleOnlyConfidence {
		t.Errorf("default rule-only confidence = %v", cfg.Risk.RuleOnlyConfidence)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	cfg, err := Load(writeConfig(t, "database:\n  password: ${TEST_DB_PASSWORD}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("password = %q", cfg.Database.Password)
	}
}

func TestLoadCustomThresholds(t *testing.T) {
	content := `
risk:
  thresholds:
    low: 1
    medium: 3
    high: 10
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := risk.Thresholds{Low: 1, Medium: 3, High: 10}
	if cfg.Risk.Thresholds != want {
		t.Errorf("thresholds = %+v, want %+v", cfg.Risk.Thresholds, want)
	}
}

func TestDSN(t *testing.T) {
	cfg := Default()
	dsn := cfg.Database.DSN()
	want := "host=localhost port=5432 user=phiscan password= dbname=phiscan sslmode=disable"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}
}

func TestBuildLibrary(t *testing.T) {
	content := `
library:
  categories:
    - name: CUSTOM_MRN
      priority: 92
      risk_weight: 2
  patterns:
    - category: CUSTOM_MRN
      pattern: '\bU\d{7}\b'
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lib, err := cfg.BuildLibrary(nil)
	if err != nil {
		t.Fatalf("BuildLibrary: %v", err)
	}
	snap := lib.Snapshot()

	if got := snap.CategoryPriority("CUSTOM_MRN"); got != 92 {
		t.Errorf("custom priority = %d", got)
	}
	if got := snap.RiskWeight("CUSTOM_MRN"); got != 2 {
		t.Errorf("custom weight = %d", got)
	}
	if len(snap.For("CUSTOM_MRN")) != 1 {
		t.Error("custom pattern missing")
	}
	if len(snap.For("SSN")) == 0 {
		t.Error("built-ins missing after custom registration")
	}
}

func TestBuildLibrarySkipsBadPatterns(t *testing.T) {
	cfg := Default()
	cfg.Library.Patterns = []patterns.Def{
		{Category: "CUSTOM_A", Pattern: `[unclosed`},
		{Category: "CUSTOM_B", Pattern: `\bU\d{7}\b`},
		{Category: "CUSTOM_C", Pattern: `\d+`, Validator: "nope"},
	}
	stored := []patterns.Def{
		{Category: "CUSTOM_D", Pattern: `(another[bad`},
		{Category: "CUSTOM_E", Pattern: `\bE\d{4}\b`},
	}

	lib, err := cfg.BuildLibrary(stored)
	if err != nil {
		t.Fatalf("BuildLibrary should skip bad definitions, got %v", err)
	}
	snap := lib.Snapshot()

	// Definitions after the bad ones must survive.
	if len(snap.For("CUSTOM_B")) != 1 {
		t.Error("valid config pattern after a bad one was lost")
	}
	if len(snap.For("CUSTOM_E")) != 1 {
		t.Error("valid stored pattern after a bad one was lost")
	}
	if len(snap.For("CUSTOM_A")) != 0 || len(snap.For("CUSTOM_C")) != 0 || len(snap.For("CUSTOM_D")) != 0 {
		t.Error("bad definitions registered patterns")
	}
	if len(snap.For("SSN")) == 0 {
		t.Error("built-ins missing")
	}
}

func TestRegisterAllStillStrict(t *testing.T) {
	lib := patterns.Empty()
	err := lib.RegisterAll([]patterns.Def{
		{Category: "CUSTOM_A", Pattern: `[unclosed`},
		{Category: "CUSTOM_B", Pattern: `\bU\d{7}\b`},
	})
	var ce *patterns.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError from strict registration, got %v", err)
	}
}
