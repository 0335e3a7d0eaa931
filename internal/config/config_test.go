package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "QATRIAGE_LLM_MODEL", "QATRIAGE_ARTIFACTS_DIR", "QATRIAGE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected Model=gpt-4o-mini, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Errorf("expected Temperature=0.3, got %v", cfg.LLM.Temperature)
	}
	if cfg.BugReportsPath() != filepath.Join("artifacts", "bug-reports.json") {
		t.Errorf("unexpected bug report path %s", cfg.BugReportsPath())
	}
	if cfg.FixSuggestionsPath() != filepath.Join("artifacts", "fix-suggestions.json") {
		t.Errorf("unexpected fix suggestion path %s", cfg.FixSuggestionsPath())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate without an API key: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "qatriage.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.5-flash"
	cfg.Artifacts.Dir = "out/artifacts"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", loaded.LLM.Provider)
	}
	if loaded.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("expected Model=gemini-2.5-flash, got %s", loaded.LLM.Model)
	}
	if loaded.Artifacts.Dir != "out/artifacts" {
		t.Errorf("expected artifacts dir out/artifacts, got %s", loaded.Artifacts.Dir)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "qatriage" {
		t.Errorf("expected defaults, got name %q", cfg.Name)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "qatriage.yaml")
	content := "llm:\n  model: gpt-4.1-mini\ntriage:\n  fix_suggestions: false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Errorf("expected overridden model, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Errorf("expected default temperature to survive, got %v", cfg.LLM.Temperature)
	}
	if cfg.Triage.FixSuggestions {
		t.Error("expected fix suggestions disabled")
	}
	if !cfg.Triage.BugReports {
		t.Error("expected bug reports to stay enabled")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qatriage.yaml")
	if err := os.WriteFile(path, []byte("llm: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetLLMTimeout(); got != 60*time.Second {
		t.Errorf("expected 60s, got %v", got)
	}

	cfg.LLM.Timeout = "not-a-duration"
	if got := cfg.GetLLMTimeout(); got != 60*time.Second {
		t.Errorf("expected fallback 60s, got %v", got)
	}

	cfg.Artifacts.LockTimeout = "5s"
	if got := cfg.GetLockTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}

	cfg.Browser.NavigationTimeout = "-1s"
	if got := cfg.GetNavigationTimeout(); got != 30*time.Second {
		t.Errorf("expected fallback 30s for negative value, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"gemini", func(c *Config) { c.LLM.Provider = "gemini" }, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "router" }, true},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 3 }, true},
		{"empty artifacts dir", func(c *Config) { c.Artifacts.Dir = " " }, true},
		{"same store file", func(c *Config) { c.Artifacts.FixSuggestionsFile = c.Artifacts.BugReportsFile }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScreenshotsPath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ScreenshotsPath(); got != filepath.Join("artifacts", "screenshots") {
		t.Errorf("unexpected relative screenshots path %s", got)
	}
	abs := filepath.Join(t.TempDir(), "shots")
	cfg.Artifacts.ScreenshotsDir = abs
	if got := cfg.ScreenshotsPath(); got != abs {
		t.Errorf("expected absolute path to be kept, got %s", got)
	}
}
