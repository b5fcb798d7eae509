package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"buildscan/internal/buildpipeline"
	"buildscan/internal/diagfmt"
	"buildscan/internal/version"
)

type reportTarget struct {
	format diagfmt.Format
	path   string
}

func readReportTarget(cmd *cobra.Command) (reportTarget, error) {
	formatValue, err := cmd.Flags().GetString("format")
	if err != nil {
		return reportTarget{}, fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := diagfmt.ParseFormat(formatValue)
	if err != nil {
		return reportTarget{}, err
	}
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return reportTarget{}, fmt.Errorf("failed to get output flag: %w", err)
	}
	if format.Binary() && (path == "" || path == "-") && isTerminal(os.Stdout) {
		return reportTarget{}, fmt.Errorf("refusing to write %s to a terminal, use --output", format)
	}
	return reportTarget{format: format, path: path}, nil
}

// writeReport renders res into the selected target. Pretty output to a
// terminal follows --color and is clipped to the terminal width.
func writeReport(cmd *cobra.Command, target reportTarget, res buildpipeline.RunResult) error {
	out := os.Stdout
	var file *os.File
	if target.path != "" && target.path != "-" {
		f, err := os.Create(target.path)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		file, out = f, f
	}
	var w io.Writer = out

	opts := diagfmt.RenderOpts{
		Pretty: diagfmt.PrettyOpts{Color: useColor(cmd, out), Context: true},
		Sarif: diagfmt.SarifRunMeta{
			ToolName:       "buildscan",
			ToolVersion:    version.Current(),
			InvocationArgs: os.Args[1:],
		},
	}
	if isTerminal(out) {
		if width, _, err := term.GetSize(int(out.Fd())); err == nil {
			opts.Pretty.Width = width
		}
	}
	err := diagfmt.Render(w, target.format, res, opts)
	if file != nil {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// finishResult prints the trailing status lines and maps the outcome to an
// exit status.
func finishResult(cmd *cobra.Command, res buildpipeline.RunResult) error {
	stderr := cmd.ErrOrStderr()
	if !quiet(cmd) {
		for _, issue := range res.RuleIssues {
			fmt.Fprintf(stderr, "rules: dropped %s\n", issue.Error())
		}
		if line := describeTermination(res.Termination); line != "" {
			fmt.Fprintln(stderr, line)
		}
		if timings, err := cmd.Root().PersistentFlags().GetBool("timings"); err == nil && timings {
			if err := printStageTimings(stderr, res.Timings); err != nil {
				return err
			}
		}
	}
	if res.Succeeded() {
		if !quiet(cmd) {
			printTraceWarnings(cmd, stderr)
		}
		return nil
	}
	dumpTraceRing(cmd, stderr)
	return errBuildFailed
}

func describeTermination(t buildpipeline.Termination) string {
	switch t.State {
	case buildpipeline.StateExited:
		if t.Code == 0 {
			return ""
		}
		return fmt.Sprintf("build exited with code %d", t.Code)
	case buildpipeline.StateException:
		return fmt.Sprintf("build terminated by %s", t.Signal)
	case buildpipeline.StateExpired:
		return fmt.Sprintf("build expired after %s", t.Elapsed.Round(1e6))
	case buildpipeline.StateLaunchFailed:
		return "build could not be started"
	}
	return ""
}

// commandFromArgs turns the words after "--" into one command string that
// splits back into the same argv.
func commandFromArgs(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func clipTitle(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
