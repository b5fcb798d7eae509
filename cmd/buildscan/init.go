package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"buildscan/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default buildscan config",
	Long: `Write a buildscan.toml (or buildscan.yaml with --format yaml) holding the
default limits and empty rule tables. The directory is created when missing.
An existing config file is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("format", "toml", "config format (toml|yaml)")
}

func runInit(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	body, err := config.Template(format)
	if err != nil {
		return err
	}

	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return err
	}
	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err = os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	for _, name := range config.FileNames {
		existing := filepath.Join(target, name)
		if _, err := os.Stat(existing); err == nil {
			return fmt.Errorf("already initialized: %s exists", existing)
		}
	}

	name := "buildscan.toml"
	if format == "yaml" || format == "yml" {
		name = "buildscan.yaml"
	}
	path := filepath.Join(target, name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if !quiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}
