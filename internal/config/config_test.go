package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"buildscan/internal/buildpipeline"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildscan.toml")
	writeFile(t, path, `
[limits]
max_errors = 5

[rules]
error_match = ["^BOOM"]
warning_exception = ["deprecated"]

[[rules.file_line]]
pattern = '^at (\S+):(\d+)'
file_group = 1
line_group = 2

[run]
mode = "launcher"
timeout = "90s"
source_dir = "/src"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Limits.MaxErrors)
	require.Equal(t, 50, cfg.Limits.MaxWarnings)
	require.Equal(t, []string{"^BOOM"}, cfg.Rules.ErrorMatch)
	require.Len(t, cfg.Rules.FileLine, 1)
	require.Equal(t, 2, cfg.Rules.FileLine[0].LineGroup)
	require.Equal(t, "launcher", cfg.Run.Mode)
	require.Equal(t, 90*time.Second, cfg.Run.Timeout.Duration)
	require.Equal(t, path, cfg.Path)

	req, err := cfg.RunRequest("make all")
	require.NoError(t, err)
	require.Equal(t, buildpipeline.ModeLauncher, req.Mode)
	require.Equal(t, uint(5), req.MaxErrors)
	require.Equal(t, uint(10), req.MaxPostContext)
	require.Equal(t, "/src", req.SourceDir)
	require.Equal(t, []string{"deprecated"}, req.Rules.WarningExceptions)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildscan.yaml")
	writeFile(t, path, `
limits:
  max_warnings: 7
rules:
  warning_match: ["^lint:"]
run:
  timeout: 2m
  encoding: windows-1252
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Limits.MaxWarnings)
	require.Equal(t, 50, cfg.Limits.MaxErrors)
	require.Equal(t, []string{"^lint:"}, cfg.Rules.WarningMatch)
	require.Equal(t, 2*time.Minute, cfg.Run.Timeout.Duration)
	require.Equal(t, "windows-1252", cfg.Run.Encoding)
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.toml":  "[limits]\nmax_errorz = 1\n",
		"negative.toml": "[limits]\nmax_errors = -1\n",
		"mode.toml":     "[run]\nmode = \"psychic\"\n",
		"timeout.toml":  "[run]\ntimeout = \"soon\"\n",
		"unknown.yaml":  "limits:\n  max_errorz: 1\n",
		"config.ini":    "max_errors=1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeFile(t, path, content)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "buildscan.yml"), "limits:\n  max_errors: 3\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	path, ok, err := Find(nested)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "buildscan.yml"), path)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"BUILDSCAN_MAX_ERRORS":       "12",
		"BUILDSCAN_MAX_POST_CONTEXT": " 0 ",
		"BUILDSCAN_TIMEOUT":          "1m",
		"BUILDSCAN_MODE":             "launcher",
		"BUILDSCAN_ENCODING":         "",
	}))
	require.NoError(t, err)
	require.Equal(t, 12, cfg.Limits.MaxErrors)
	require.Equal(t, 0, cfg.Limits.MaxPostContext)
	require.Equal(t, time.Minute, cfg.Run.Timeout.Duration)
	require.Equal(t, "launcher", cfg.Run.Mode)
	require.Equal(t, "", cfg.Run.Encoding)

	cfg = Default()
	require.Error(t, cfg.ApplyEnv(envMap(map[string]string{"BUILDSCAN_MAX_ERRORS": "many"})))
	cfg = Default()
	require.Error(t, cfg.ApplyEnv(envMap(map[string]string{"BUILDSCAN_MAX_WARNINGS": "-3"})))
}

func TestResolveUsesDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "buildscan.toml"), "[limits]\nmax_errors = 4\n")
	writeFile(t, filepath.Join(dir, ".env"), "BUILDSCAN_MAX_WARNINGS=9\n")
	t.Setenv("BUILDSCAN_MAX_WARNINGS", "")
	require.NoError(t, os.Unsetenv("BUILDSCAN_MAX_WARNINGS"))

	cfg, err := Resolve(dir, "")
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Limits.MaxErrors)
	require.Equal(t, 9, cfg.Limits.MaxWarnings)
}

func TestTemplatesRoundTrip(t *testing.T) {
	for _, format := range []string{"toml", "yaml"} {
		t.Run(format, func(t *testing.T) {
			data, err := Template(format)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "buildscan."+format)
			writeFile(t, path, string(data))

			cfg, err := Load(path)
			require.NoError(t, err)
			want := Default()
			require.Equal(t, want.Limits, cfg.Limits)
			require.Equal(t, want.Run.Mode, cfg.Run.Mode)
			require.Zero(t, cfg.Run.Timeout.Duration)
		})
	}
	_, err := Template("ini")
	require.Error(t, err)
}
