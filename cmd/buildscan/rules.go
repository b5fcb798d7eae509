package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"buildscan/internal/diag"
	"buildscan/internal/rules"
	"buildscan/internal/trace"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [flags]",
	Short: "Print the effective classification rules",
	Long: `Print the built-in rule tables followed by the patterns added in the config
file, and the patterns that failed to compile. With --classify, show how the
given lines would be classified instead.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	rulesCmd.Flags().StringArray("classify", nil, "classify a sample line (repeatable)")
}

type rulesPayload struct {
	Tables map[string][]string `json:"tables,omitempty"`
	Issues []string            `json:"issues,omitempty"`
	Lines  []classifiedLine    `json:"lines,omitempty"`
}

type classifiedLine struct {
	Text  string `json:"text"`
	Class string `json:"class"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
}

func runRules(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	samples, err := cmd.Flags().GetStringArray("classify")
	if err != nil {
		return fmt.Errorf("failed to get classify flag: %w", err)
	}
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}

	rs := rules.Compile(rules.Builtin(), cfg.Rules.RuleConfig(), trace.FromContext(cmd.Context()))
	payload := rulesPayload{}
	for _, issue := range rs.Issues() {
		payload.Issues = append(payload.Issues, issue.Error())
	}
	if len(samples) > 0 {
		payload.Lines = classifySamples(rs, samples)
	} else {
		payload.Tables = make(map[string][]string)
		for _, table := range rules.Tables() {
			payload.Tables[string(table)] = rs.Patterns(table)
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	return renderRulesPretty(out, payload)
}

// classifySamples classifies each line on its own, with fresh quotas.
func classifySamples(rs *rules.RuleSet, samples []string) []classifiedLine {
	out := make([]classifiedLine, 0, len(samples))
	for _, text := range samples {
		q := diag.NewQuotaState(1, 1)
		cl := classifiedLine{Text: text, Class: rules.Classify(text, q, rs).String()}
		if loc, ok := rs.Locate(text); ok {
			cl.File, cl.Line = loc.File, loc.Line
		}
		out = append(out, cl)
	}
	return out
}

func renderRulesPretty(out io.Writer, payload rulesPayload) error {
	heading := color.New(color.Bold)
	for _, table := range rules.Tables() {
		patterns, ok := payload.Tables[string(table)]
		if !ok {
			continue
		}
		if _, err := heading.Fprintf(out, "%s (%d)\n", table, len(patterns)); err != nil {
			return err
		}
		for _, p := range patterns {
			if _, err := fmt.Fprintf(out, "  %s\n", p); err != nil {
				return err
			}
		}
	}
	for _, line := range payload.Lines {
		loc := ""
		if line.File != "" {
			loc = fmt.Sprintf(" [%s:%d]", line.File, line.Line)
		}
		if _, err := fmt.Fprintf(out, "%-7s %s%s\n", line.Class, line.Text, loc); err != nil {
			return err
		}
	}
	for _, issue := range payload.Issues {
		if _, err := color.New(color.FgYellow).Fprintf(out, "dropped %s\n", issue); err != nil {
			return err
		}
	}
	return nil
}
