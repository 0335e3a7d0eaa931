// Package logging provides categorized logging for qatriage on top of zap.
// Each subsystem logs through its own category so triage output from many
// parallel test workers can be filtered per concern.
// Until Initialize is called every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config and env loading
	CategoryAPI       Category = "api"       // Remote model calls
	CategoryBugReport Category = "bugreport" // Bug report assistant
	CategoryFix       Category = "fix"       // Fix suggestion assistant
	CategoryTriage    Category = "triage"    // Failure triage orchestrator
	CategoryStore     Category = "store"     // Artifact store I/O
	CategoryBrowser   Category = "browser"   // Page adapter, screenshots
	CategoryIngest    Category = "ingest"    // go test -json ingestion
	CategoryReview    Category = "review"    // Review CLI
	CategoryGenerate  Category = "generate"  // Test generation from feature descriptions
)

// Config controls the zap backend.
type Config struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`   // empty = stderr
	Categories map[string]bool `yaml:"categories"`
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	base      = zap.NewNop()
	cfg       Config
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	configMu  sync.RWMutex
	logFile   *os.File
	nopLogger = zap.NewNop().Sugar()
)

// Initialize builds the zap backend. Safe to call again; the previous
// backend is synced and replaced.
func Initialize(c Config) error {
	level := zap.NewAtomicLevelAt(parseLevel(c.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	var f *os.File
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		var err error
		f, err = os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.AddSync(f)
	}

	SetBase(zap.New(zapcore.NewCore(enc, sink, level)), c)

	configMu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	configMu.Unlock()

	Boot("logging initialized level=%s format=%s file=%q", level.Level(), c.Format, c.File)
	return nil
}

// SetBase swaps the zap backend directly. Tests use it with zaptest/observer.
func SetBase(l *zap.Logger, c Config) {
	configMu.Lock()
	_ = base.Sync()
	base = l
	cfg = c
	configMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// Base returns the current zap backend.
func Base() *zap.Logger {
	configMu.RLock()
	defer configMu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	configMu.RLock()
	defer configMu.RUnlock()
	_ = base.Sync()
}

// Reset returns to the no-op backend and closes any log file.
func Reset() {
	SetBase(zap.NewNop(), Config{})
	configMu.Lock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	configMu.Unlock()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories missing from the map are enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()
	if cfg.Categories == nil {
		return true
	}
	enabled, ok := cfg.Categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: nopLogger}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    Base().Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger that attaches the given key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func BugReport(format string, args ...interface{})      { Get(CategoryBugReport).Info(format, args...) }
func BugReportDebug(format string, args ...interface{}) { Get(CategoryBugReport).Debug(format, args...) }
func BugReportWarn(format string, args ...interface{})  { Get(CategoryBugReport).Warn(format, args...) }
func BugReportError(format string, args ...interface{}) { Get(CategoryBugReport).Error(format, args...) }

func Fix(format string, args ...interface{})      { Get(CategoryFix).Info(format, args...) }
func FixDebug(format string, args ...interface{}) { Get(CategoryFix).Debug(format, args...) }
func FixWarn(format string, args ...interface{})  { Get(CategoryFix).Warn(format, args...) }
func FixError(format string, args ...interface{}) { Get(CategoryFix).Error(format, args...) }

func Triage(format string, args ...interface{})      { Get(CategoryTriage).Info(format, args...) }
func TriageDebug(format string, args ...interface{}) { Get(CategoryTriage).Debug(format, args...) }
func TriageWarn(format string, args ...interface{})  { Get(CategoryTriage).Warn(format, args...) }
func TriageError(format string, args ...interface{}) { Get(CategoryTriage).Error(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func Browser(format string, args ...interface{})      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...interface{})  { Get(CategoryBrowser).Warn(format, args...) }

func Ingest(format string, args ...interface{})     { Get(CategoryIngest).Info(format, args...) }
func IngestWarn(format string, args ...interface{}) { Get(CategoryIngest).Warn(format, args...) }

func Generate(format string, args ...interface{})      { Get(CategoryGenerate).Info(format, args...) }
func GenerateWarn(format string, args ...interface{})  { Get(CategoryGenerate).Warn(format, args...) }
func GenerateError(format string, args ...interface{}) { Get(CategoryGenerate).Error(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer starts timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when the operation exceeded threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s slow: %v (threshold %v)", t.operation, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	}
	return elapsed
}
