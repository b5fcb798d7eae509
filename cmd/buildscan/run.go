package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buildscan/internal/buildpipeline"
	"buildscan/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command...>",
	Short: "Run a build command and report its diagnostics",
	Long: `Run a build command, classify its output into errors and warnings and
print a bounded report. A single argument is split like a shell command line;
several arguments are taken as the argv of the build.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	runCmd.Flags().String("mode", "", "collection mode (scrape|launcher)")
	runCmd.Flags().String("workdir", "", "working directory of the build")
	runCmd.Flags().Duration("timeout", 0, "kill the build after this long (0 disables)")
	addLimitFlags(runCmd)
	runCmd.Flags().String("launch-dir", "", "fragment directory in launcher mode (default: temporary)")
	addPathFlags(runCmd)
	runCmd.Flags().String("format", "pretty", "report format (pretty|json|msgpack|sarif)")
	runCmd.Flags().String("output", "", "write the report to a file instead of stdout")
	runCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
}

func addLimitFlags(cmd *cobra.Command) {
	cmd.Flags().Uint("max-errors", 0, "maximum number of errors (default from config, 50)")
	cmd.Flags().Uint("max-warnings", 0, "maximum number of warnings (default from config, 50)")
	cmd.Flags().Uint("max-pre-context", 0, "context lines kept before a diagnostic (default from config, 10)")
	cmd.Flags().Uint("max-post-context", 0, "context lines kept after a diagnostic (default from config, 10)")
}

func addPathFlags(cmd *cobra.Command) {
	cmd.Flags().String("source-dir", "", "source tree shortened to a relative path in the report")
	cmd.Flags().String("build-dir", "", "build tree shortened to a relative path in the report")
	cmd.Flags().String("encoding", "", "charset of the build output (default UTF-8)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	target, err := readReportTarget(cmd)
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	showView, err := progressView(uiValue, quiet(cmd), func() bool { return isTerminal(os.Stderr) })
	if err != nil {
		return err
	}

	workDir, err := cmd.Flags().GetString("workdir")
	if err != nil {
		return fmt.Errorf("failed to get workdir flag: %w", err)
	}
	cfg, err := loadConfig(cmd, workDir)
	if err != nil {
		return err
	}
	command := commandFromArgs(args)
	req, err := cfg.RunRequest(command)
	if err != nil {
		return err
	}
	req.WorkDir = workDir
	if req.Heartbeat, err = cmd.Root().PersistentFlags().GetDuration("trace-heartbeat"); err != nil {
		return fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}
	if err := applyRunFlags(cmd, req); err != nil {
		return err
	}

	var res buildpipeline.RunResult
	if showView {
		res, err = runWithUI(cmd.Context(), clipTitle("buildscan run "+command, 72), req)
	} else {
		res, err = buildpipeline.Run(cmd.Context(), req)
	}
	if err != nil {
		return err
	}
	if err := writeReport(cmd, target, res); err != nil {
		return err
	}
	return finishResult(cmd, res)
}

// loadConfig resolves the config for a run in dir, honoring --config.
func loadConfig(cmd *cobra.Command, dir string) (config.Config, error) {
	explicit, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return config.Config{}, err
		}
	}
	return config.Resolve(dir, explicit)
}

// applyRunFlags overrides config values with the flags set on the command line.
func applyRunFlags(cmd *cobra.Command, req *buildpipeline.RunRequest) error {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		value, err := flags.GetString("mode")
		if err != nil {
			return err
		}
		mode, err := buildpipeline.ParseMode(value)
		if err != nil {
			return err
		}
		req.Mode = mode
	}
	if flags.Changed("timeout") {
		timeout, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		req.Timeout = timeout
	}
	if flags.Changed("launch-dir") {
		dir, err := flags.GetString("launch-dir")
		if err != nil {
			return err
		}
		req.LaunchDir = dir
	}
	if err := applyLimitFlags(cmd, &req.Limits); err != nil {
		return err
	}
	return applyPathFlags(cmd, &req.SourceDir, &req.BuildDir, &req.Encoding)
}

func applyLimitFlags(cmd *cobra.Command, limits *buildpipeline.Limits) error {
	for _, f := range []struct {
		name string
		dst  *uint
	}{
		{"max-errors", &limits.MaxErrors},
		{"max-warnings", &limits.MaxWarnings},
		{"max-pre-context", &limits.MaxPreContext},
		{"max-post-context", &limits.MaxPostContext},
	} {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetUint(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func applyPathFlags(cmd *cobra.Command, sourceDir, buildDir, encoding *string) error {
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"source-dir", sourceDir},
		{"build-dir", buildDir},
		{"encoding", encoding},
	} {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}
