package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "BUILDSCAN_"

// LoadDotEnv loads dir/.env into the process environment without replacing
// variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with BUILDSCAN_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_ERRORS", &c.Limits.MaxErrors},
		{"MAX_WARNINGS", &c.Limits.MaxWarnings},
		{"MAX_PRE_CONTEXT", &c.Limits.MaxPreContext},
		{"MAX_POST_CONTEXT", &c.Limits.MaxPostContext},
	}
	for _, it := range ints {
		raw, ok := lookupTrimmed(lookup, it.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s%s: invalid integer %q", EnvPrefix, it.key, raw)
		}
		*it.dst = n
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"MODE", &c.Run.Mode},
		{"ENCODING", &c.Run.Encoding},
		{"SOURCE_DIR", &c.Run.SourceDir},
		{"BUILD_DIR", &c.Run.BuildDir},
		{"LAUNCH_DIR", &c.Run.LaunchDir},
	}
	for _, it := range strs {
		if raw, ok := lookupTrimmed(lookup, it.key); ok {
			*it.dst = raw
		}
	}

	if raw, ok := lookupTrimmed(lookup, "TIMEOUT"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return fmt.Errorf("%sTIMEOUT: invalid duration %q", EnvPrefix, raw)
		}
		c.Run.Timeout = Duration{d}
	}
	return c.Validate()
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	raw, ok := lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// Resolve builds the effective configuration for a run started in dir.
// An explicit path must exist; otherwise the nearest config file above dir
// is used when present.
func Resolve(dir, explicit string) (Config, error) {
	cfg := Default()
	path := explicit
	if path == "" {
		found, ok, err := Find(dir)
		if err != nil {
			return Config{}, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := LoadDotEnv(dir); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
