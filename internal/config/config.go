// Package config loads buildscan settings from buildscan.toml or
// buildscan.yaml, a .env file and BUILDSCAN_* environment variables.
//
// Precedence, lowest first: built-in defaults, the config file, the process
// environment (including values loaded from .env), command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"buildscan/internal/rules"
)

// FileNames lists the recognised config file names in lookup order.
var FileNames = []string{"buildscan.toml", "buildscan.yaml", "buildscan.yml"}

// Config is the decoded configuration.
type Config struct {
	Limits LimitsConfig `toml:"limits" yaml:"limits"`
	Rules  RulesConfig  `toml:"rules" yaml:"rules"`
	Run    RunConfig    `toml:"run" yaml:"run"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-" yaml:"-"`
}

// LimitsConfig holds the per-run caps. Values must not be negative.
type LimitsConfig struct {
	MaxErrors      int `toml:"max_errors" yaml:"max_errors"`
	MaxWarnings    int `toml:"max_warnings" yaml:"max_warnings"`
	MaxPreContext  int `toml:"max_pre_context" yaml:"max_pre_context"`
	MaxPostContext int `toml:"max_post_context" yaml:"max_post_context"`
}

// RulesConfig holds user patterns appended after the built-in rules.
type RulesConfig struct {
	ErrorMatch       []string             `toml:"error_match" yaml:"error_match"`
	ErrorException   []string             `toml:"error_exception" yaml:"error_exception"`
	WarningMatch     []string             `toml:"warning_match" yaml:"warning_match"`
	WarningException []string             `toml:"warning_exception" yaml:"warning_exception"`
	FileLine         []rules.FileLineSpec `toml:"file_line" yaml:"file_line"`
}

// RunConfig holds invocation settings.
type RunConfig struct {
	Mode      string   `toml:"mode" yaml:"mode"`
	Timeout   Duration `toml:"timeout" yaml:"timeout"`
	LaunchDir string   `toml:"launch_dir" yaml:"launch_dir"`
	SourceDir string   `toml:"source_dir" yaml:"source_dir"`
	BuildDir  string   `toml:"build_dir" yaml:"build_dir"`
	Encoding  string   `toml:"encoding" yaml:"encoding"`
}

// Duration is a time.Duration written as a string such as "90s" or "1h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Limits: LimitsConfig{
			MaxErrors:      50,
			MaxWarnings:    50,
			MaxPreContext:  10,
			MaxPostContext: 10,
		},
		Run: RunConfig{Mode: "scrape"},
	}
}

// Find walks up from startDir looking for a config file.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path on top of the defaults. The format follows the extension.
func Load(path string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
		for i, fl := range cfg.Rules.FileLine {
			if strings.TrimSpace(fl.Pattern) == "" {
				return Config{}, fmt.Errorf("%s: [[rules.file_line]] #%d: missing pattern", path, i+1)
			}
		}
	case ".yaml", ".yml":
		// #nosec G304 -- config path is chosen by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%s: unsupported config format (expected .toml, .yaml or .yml)", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := c.Limits.toUint(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Run.Mode)) {
	case "", "scrape", "launcher":
	default:
		return fmt.Errorf("[run].mode: unknown mode %q (expected scrape|launcher)", c.Run.Mode)
	}
	return nil
}

// RuleConfig converts the rules section for rules.Compile.
func (r RulesConfig) RuleConfig() rules.Config {
	return rules.Config{
		ErrorMatches:      r.ErrorMatch,
		ErrorExceptions:   r.ErrorException,
		WarningMatches:    r.WarningMatch,
		WarningExceptions: r.WarningException,
		FileLine:          r.FileLine,
	}
}
