package main

import (
	"fmt"
	"os"

	"qatriage/internal/config"
	"qatriage/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	artifactsDir string
	envFiles     []string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qatriage",
	Short: "AI-assisted triage for failed UI tests",
	Long: `qatriage drafts a bug report and a candidate test fix for every failed UI test
and appends both to JSON artifact logs for human review.

Suggestions are never applied automatically.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
}

// ingestCmd triages a go test -json stream
var ingestCmd = &cobra.Command{
	Use:   "ingest [file|-]",
	Short: "Triage every failed test in a `go test -json` stream",
	Long: `Reads test2json events from a file or stdin and runs triage for each failed test.

Example:
  go test -json ./e2e/... | qatriage ingest -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

// reviewCmd lists fix suggestions
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review fix suggestions (read-only)",
	RunE:  runReview,
}

// bugsCmd lists bug report drafts
var bugsCmd = &cobra.Command{
	Use:   "bugs",
	Short: "List bug report drafts",
	RunE:  runBugs,
}

// watchCmd follows both stores
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print drafts as they are appended",
	RunE:  runWatch,
}

// statsCmd summarizes failure history
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize repeated failures per test",
	RunE:  runStats,
}

// generateCmd drafts tests from a feature description
var generateCmd = &cobra.Command{
	Use:   "generate [file|-]",
	Short: "Draft test cases and a go-rod test file from a feature description",
	Long: `Reads a feature description from a file or stdin, prints generated test cases
and writes a go-rod test file for review. Generated tests are never run.

Example:
  qatriage generate feature.md --url https://www.saucedemo.com/ --element '#login-button' --out e2e/generated_test.go`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

// initCmd writes a default config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default qatriage.yaml",
	RunE:  runInit,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts-dir", "", "Artifacts directory (overrides config)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading config")

	ingestCmd.Flags().String("module-root", "", "Module root used to resolve test files (default: nearest go.mod)")
	ingestCmd.Flags().Int("concurrency", 4, "Failed tests triaged in parallel")

	reviewCmd.Flags().Bool("plain", false, "Print suggested changes without markdown rendering")
	reviewCmd.Flags().Bool("no-prompt", false, "List suggestions and exit")

	bugsCmd.Flags().String("severity", "", "Only show drafts with this severity")
	bugsCmd.Flags().String("test", "", "Only show drafts for this test id")

	watchCmd.Flags().Bool("tui", false, "Show a full-screen live feed")

	generateCmd.Flags().String("url", "", "Page URL the feature lives on")
	generateCmd.Flags().StringSlice("element", nil, "CSS selector available on the page (repeatable)")
	generateCmd.Flags().String("package", "e2e", "Package name for the generated test file")
	generateCmd.Flags().String("out", "", "Write the test file here instead of stdout")
	generateCmd.Flags().Bool("cases-only", false, "Only print test cases")
	generateCmd.Flags().Bool("force", false, "Overwrite an existing output file")

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(bugsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env files, config and logging for every subcommand.
func setup() error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if artifactsDir != "" {
		c.Artifacts.Dir = artifactsDir
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	if err := logging.Initialize(c.LoggingOptions()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if !c.HasCredential() {
		logger.Warn("no LLM credential configured; drafts will record the credential-missing fallback",
			zap.String("provider", c.LLM.Provider))
	}
	cfg = c
	return nil
}
