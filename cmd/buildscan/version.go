package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"buildscan/internal/buildpipeline"
	"buildscan/internal/rules"
	"buildscan/internal/version"
)

// buildInfo is what `buildscan version` reports: the release, the shape of
// the compiled-in rule tables and the limits a run starts from.
type buildInfo struct {
	Version string          `json:"version"`
	Commit  string          `json:"commit,omitempty"`
	Message string          `json:"message,omitempty"`
	Built   string          `json:"built,omitempty"`
	Rules   map[string]int  `json:"rules"`
	Limits  map[string]uint `json:"limits"`
	order   []string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the buildscan release, built-in rule tables and default limits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		full, _ := cmd.Flags().GetBool("full")
		info := collectBuildInfo(full)
		switch strings.ToLower(format) {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case "pretty", "":
			writeBuildInfo(cmd.OutOrStdout(), info, useColor(cmd, os.Stdout))
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().Bool("full", false, "include commit and build date")
}

func collectBuildInfo(full bool) buildInfo {
	info := buildInfo{
		Version: version.Current(),
		Rules:   make(map[string]int),
	}
	if full {
		info.Commit = orUnknown(version.GitCommit)
		info.Message = orUnknown(version.GitMessage)
		info.Built = orUnknown(version.BuildDate)
	}
	rs := rules.Default()
	for _, table := range rules.Tables() {
		info.Rules[string(table)] = len(rs.Patterns(table))
		info.order = append(info.order, string(table))
	}
	lim := buildpipeline.DefaultLimits()
	info.Limits = map[string]uint{
		"max_errors":       lim.MaxErrors,
		"max_warnings":     lim.MaxWarnings,
		"max_pre_context":  lim.MaxPreContext,
		"max_post_context": lim.MaxPostContext,
	}
	return info
}

func writeBuildInfo(out io.Writer, info buildInfo, color bool) {
	release := info.Version
	if color {
		release = version.Colored()
	}
	fmt.Fprintf(out, "buildscan %s\n", release)
	if info.Commit != "" {
		fmt.Fprintf(out, "commit  %s\nmessage %s\nbuilt   %s\n", info.Commit, info.Message, info.Built)
	}
	fmt.Fprintln(out, "rules:")
	for _, name := range info.order {
		fmt.Fprintf(out, "  %-22s %d\n", name, info.Rules[name])
	}
	fmt.Fprintf(out, "limits: errors=%d warnings=%d context=%d/%d\n",
		info.Limits["max_errors"], info.Limits["max_warnings"],
		info.Limits["max_pre_context"], info.Limits["max_post_context"])
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
