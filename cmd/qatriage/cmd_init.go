package main

import (
	"fmt"
	"os"

	"qatriage/internal/config"

	"github.com/spf13/cobra"
)

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	// Credentials stay in the environment, never in the file.
	def := config.DefaultConfig()
	def.Artifacts.Dir = cfg.Artifacts.Dir
	if err := def.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
