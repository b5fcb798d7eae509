package diagfmt

import (
	"fmt"
	"strings"
)

// Format selects a report renderer.
type Format string

const (
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
	FormatMsgPack Format = "msgpack"
	FormatSarif   Format = "sarif"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON, FormatMsgPack, FormatSarif:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected pretty|json|msgpack|sarif)", s)
	}
}

// Binary reports whether the format must not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatMsgPack
}

// PrettyOpts configures pretty-printing of a report.
type PrettyOpts struct {
	Color bool
	// Context prints pre- and post-context lines.
	Context bool
	// Width truncates every printed line; 0 means unlimited.
	Width int
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}
