package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"qatriage/internal/assistant"
	"qatriage/internal/llm"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newLLMClient is swapped out in tests.
var newLLMClient = llm.NewClientFromConfig

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}
	desc, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read feature description: %w", err)
	}
	if strings.TrimSpace(string(desc)) == "" {
		return fmt.Errorf("feature description is empty")
	}

	pageURL, _ := cmd.Flags().GetString("url")
	elements, _ := cmd.Flags().GetStringSlice("element")
	pkg, _ := cmd.Flags().GetString("package")
	outPath, _ := cmd.Flags().GetString("out")
	casesOnly, _ := cmd.Flags().GetBool("cases-only")
	force, _ := cmd.Flags().GetBool("force")

	if outPath != "" && !force {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
		}
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	gen := assistant.NewTestGenerator(client)
	req := assistant.FeatureRequest{Description: string(desc), PageURL: pageURL, PageElements: elements}
	w := cmd.OutOrStdout()

	cases, err := gen.GenerateTestCases(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "=== Generated test cases ===")
	for _, c := range cases {
		fmt.Fprintf(w, "- %s\n", c)
	}
	if casesOnly {
		return nil
	}

	src, err := gen.GenerateTestFile(ctx, req, pkg)
	if err != nil {
		return err
	}
	if outPath == "" {
		fmt.Fprintln(w, "\n=== Generated test file ===")
		_, err := w.Write(src)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, src, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	logger.Info("generated test file written", zap.String("path", outPath), zap.Int("cases", len(cases)))
	fmt.Fprintf(w, "\nTest saved to: %s\n", outPath)
	return nil
}
