// Package main implements the buildscan CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"buildscan/internal/prof"
	"buildscan/internal/version"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitBuildFailed = 2
)

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var errBuildFailed = &exitError{code: exitBuildFailed}

var (
	traceCleanup func()
	profiling    *prof.Session
)

var rootCmd = &cobra.Command{
	Use:           "buildscan",
	Short:         "Build log classifier and diagnostic reporter",
	Long:          `buildscan runs a build command, classifies its output into errors and warnings and prints a bounded report`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColorFlag(cmd); err != nil {
			return err
		}
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		profiling, err = setupProfiling(cmd)
		return err
	},
}

func init() {
	rootCmd.Version = version.Current()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("config", "", "config file (default: nearest buildscan.toml or buildscan.yaml)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "warn", "trace level (off|warn|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "ring", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept by the trace ring buffer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "heartbeat interval for trace output (0 disables)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile of buildscan itself")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile of buildscan itself on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace of buildscan itself")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err := profiling.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "buildscan: profiling: %v\n", err)
	}
	if traceCleanup != nil {
		traceCleanup()
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "buildscan: %v\n", err)
	return exitUsage
}

func applyColorFlag(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch value {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}

func useColor(cmd *cobra.Command, f *os.File) bool {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false
	}
	return value == "on" || (value == "auto" && isTerminal(f))
}

func quiet(cmd *cobra.Command) bool {
	q, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && q
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
