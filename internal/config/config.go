package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qatriage/internal/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config path used when none is given.
const DefaultConfigFile = "qatriage.yaml"

// Config holds all qatriage configuration.
type Config struct {
	Name string `yaml:"name"`

	// Remote text-generation backend
	LLM LLMConfig `yaml:"llm"`

	// Artifact store locations
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Orchestrator behavior
	Triage TriageConfig `yaml:"triage"`

	// go-rod page adapter
	Browser BrowserConfig `yaml:"browser"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the single remote text-generation backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// ArtifactsConfig configures where triage drafts are persisted.
type ArtifactsConfig struct {
	Dir                string `yaml:"dir"`
	BugReportsFile     string `yaml:"bug_reports_file"`
	FixSuggestionsFile string `yaml:"fix_suggestions_file"`
	ScreenshotsDir     string `yaml:"screenshots_dir"`
	LockTimeout        string `yaml:"lock_timeout"`
}

// TriageConfig toggles the orchestrator's sub-pipelines.
type TriageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	BugReports         bool   `yaml:"bug_reports"`
	FixSuggestions     bool   `yaml:"fix_suggestions"`
	CaptureScreenshots bool   `yaml:"capture_screenshots"`
	MaxSourceBytes     int64  `yaml:"max_source_bytes"`
	Environment        string `yaml:"environment"` // Fixed environment text for bug reports
}

// BrowserConfig configures browser launch for UI suites.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"` // Connect here instead of launching
	Launch            []string `yaml:"launch"`       // Browser binary followed by extra flags
	Headless          bool     `yaml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "qatriage",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.3,
			Timeout:     "60s",
		},

		Artifacts: ArtifactsConfig{
			Dir:                "artifacts",
			BugReportsFile:     "bug-reports.json",
			FixSuggestionsFile: "fix-suggestions.json",
			ScreenshotsDir:     "screenshots",
			LockTimeout:        "30s",
		},

		Triage: TriageConfig{
			Enabled:            true,
			BugReports:         true,
			FixSuggestions:     true,
			CaptureScreenshots: true,
			MaxSourceBytes:     256 * 1024,
			Environment:        "Automated UI test run (Go, go-rod/Chromium)",
		},

		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    800,
			NavigationTimeout: "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from .env files into the process
// environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Credential env vars only fill the key for their own backend, so a
	// configured provider is never switched behind the user's back.
	switch c.LLM.Provider {
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "openai", "":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.APIKey = key
			c.LLM.Provider = "openai"
		}
	}

	if model := os.Getenv("QATRIAGE_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("QATRIAGE_ARTIFACTS_DIR"); dir != "" {
		c.Artifacts.Dir = dir
	}
	if level := os.Getenv("QATRIAGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLLMTimeout returns the per-call model timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetLockTimeout returns how long an append waits for the store lock.
func (c *Config) GetLockTimeout() time.Duration {
	return parseDuration(c.Artifacts.LockTimeout, 30*time.Second)
}

// GetNavigationTimeout returns the browser navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// BugReportsPath returns the bug-report store path.
func (c *Config) BugReportsPath() string {
	return filepath.Join(c.Artifacts.Dir, c.Artifacts.BugReportsFile)
}

// FixSuggestionsPath returns the fix-suggestion store path.
func (c *Config) FixSuggestionsPath() string {
	return filepath.Join(c.Artifacts.Dir, c.Artifacts.FixSuggestionsFile)
}

// ScreenshotsPath returns the directory failure screenshots are written to.
func (c *Config) ScreenshotsPath() string {
	if filepath.IsAbs(c.Artifacts.ScreenshotsDir) {
		return c.Artifacts.ScreenshotsDir
	}
	return filepath.Join(c.Artifacts.Dir, c.Artifacts.ScreenshotsDir)
}

// LoggingOptions converts the logging section for logging.Initialize.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		Categories: c.Logging.Categories,
	}
}

// ValidProviders lists the supported backends. Exactly one is active per process.
var ValidProviders = []string{"openai", "gemini"}

// Validate validates the configuration.
// A missing API key is not a validation error: triage degrades to
// credential-missing drafts instead of refusing to run.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid LLM temperature: %v (must be within [0, 2])", c.LLM.Temperature)
	}

	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		return fmt.Errorf("artifacts.dir must not be empty")
	}
	if c.Artifacts.BugReportsFile == "" || c.Artifacts.FixSuggestionsFile == "" {
		return fmt.Errorf("artifact file names must not be empty")
	}
	if c.Artifacts.BugReportsFile == c.Artifacts.FixSuggestionsFile {
		return fmt.Errorf("bug report and fix suggestion stores must be different files")
	}

	return nil
}

// HasCredential reports whether an API key is configured.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}
