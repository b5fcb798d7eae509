package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"buildscan/internal/buildpipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan [flags] [file]",
	Short: "Classify an existing build log",
	Long:  `Classify a saved build log the same way run classifies live output. Reads stdin when no file or "-" is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	addLimitFlags(scanCmd)
	addPathFlags(scanCmd)
	scanCmd.Flags().String("format", "pretty", "report format (pretty|json|msgpack|sarif)")
	scanCmd.Flags().String("output", "", "write the report to a file instead of stdout")
}

func runScan(cmd *cobra.Command, args []string) error {
	target, err := readReportTarget(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	req, err := cfg.ScanRequest()
	if err != nil {
		return err
	}
	if err := applyLimitFlags(cmd, &req.Limits); err != nil {
		return err
	}
	if err := applyPathFlags(cmd, &req.SourceDir, &req.BuildDir, &req.Encoding); err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		defer f.Close()
		in = f
	}

	res, err := buildpipeline.Scan(cmd.Context(), in, req)
	if err != nil {
		return err
	}
	if err := writeReport(cmd, target, res); err != nil {
		return err
	}
	return finishResult(cmd, res)
}
