package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const tomlTemplate = `# buildscan configuration

[limits]
max_errors = 50
max_warnings = 50
max_pre_context = 10
max_post_context = 10

[rules]
# Extra patterns are tried after the built-in rules.
error_match = []
error_exception = []
warning_match = []
warning_exception = []

# [[rules.file_line]]
# pattern = '^(\S+\.go):([0-9]+):'
# file_group = 1
# line_group = 2

[run]
mode = "scrape"     # scrape | launcher
timeout = "0s"      # 0s disables the deadline
launch_dir = ""
source_dir = ""
build_dir = ""
encoding = ""       # WHATWG label of the build output charset, empty for UTF-8
`

// Template returns the default config file for the given format
// ("toml" or "yaml").
func Template(format string) ([]byte, error) {
	switch format {
	case "", "toml":
		return []byte(tomlTemplate), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(Default())
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML template: %w", err)
		}
		return append([]byte("# buildscan configuration\n"), data...), nil
	default:
		return nil, fmt.Errorf("unknown config format %q (expected toml|yaml)", format)
	}
}
