package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buildscan/internal/buildpipeline"
	"buildscan/internal/rules"
)

func TestCommandFromArgsRoundTrip(t *testing.T) {
	cases := [][]string{
		{"make", "-j4"},
		{"sh", "-c", "echo 'a b'; exit 3"},
		{"printf", "%s\\n", "it's"},
	}
	for _, args := range cases {
		cmd := commandFromArgs(args)
		got, err := buildpipeline.SplitCommand(cmd)
		if err != nil {
			t.Fatalf("SplitCommand(%q): %v", cmd, err)
		}
		if strings.Join(got, "\x00") != strings.Join(args, "\x00") {
			t.Fatalf("round trip of %q = %q via %q", args, got, cmd)
		}
	}
}

func TestCommandFromArgsSingleWordIsVerbatim(t *testing.T) {
	if got := commandFromArgs([]string{"make -j4 all"}); got != "make -j4 all" {
		t.Fatalf("commandFromArgs = %q", got)
	}
}

func TestProgressView(t *testing.T) {
	tty := func() bool { return true }
	noTTY := func() bool { return false }
	cases := []struct {
		value string
		quiet bool
		tty   func() bool
		want  bool
	}{
		{"", false, tty, true},
		{"AUTO", false, noTTY, false},
		{" on ", false, noTTY, true},
		{"on", true, tty, false},
		{"off", false, tty, false},
		{"auto", true, tty, false},
	}
	for _, c := range cases {
		got, err := progressView(c.value, c.quiet, c.tty)
		if err != nil || got != c.want {
			t.Fatalf("progressView(%q, quiet=%v) = %v, %v", c.value, c.quiet, got, err)
		}
	}
	if _, err := progressView("sometimes", false, tty); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestVersionReportsRulesAndLimits(t *testing.T) {
	info := collectBuildInfo(false)
	if info.Commit != "" {
		t.Fatalf("commit reported without --full: %q", info.Commit)
	}
	if len(info.order) != len(rules.Tables()) {
		t.Fatalf("tables = %v", info.order)
	}
	for _, table := range rules.Tables() {
		if info.Rules[string(table)] != len(rules.Default().Patterns(table)) {
			t.Fatalf("table %s = %d", table, info.Rules[string(table)])
		}
	}
	if info.Limits["max_errors"] != buildpipeline.DefaultLimits().MaxErrors {
		t.Fatalf("limits = %v", info.Limits)
	}

	var out bytes.Buffer
	writeBuildInfo(&out, info, false)
	text := out.String()
	if !strings.HasPrefix(text, "buildscan "+info.Version+"\n") {
		t.Fatalf("header = %q", text)
	}
	lim := buildpipeline.DefaultLimits()
	want := fmt.Sprintf("limits: errors=%d warnings=%d context=%d/%d\n", lim.MaxErrors, lim.MaxWarnings, lim.MaxPreContext, lim.MaxPostContext)
	if !strings.HasSuffix(text, want) {
		t.Fatalf("limits line missing from %q", text)
	}

	full := collectBuildInfo(true)
	if full.Commit == "" || full.Built == "" {
		t.Fatalf("full info = %+v", full)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(nil); got != exitOK {
		t.Fatalf("exitCode(nil) = %d", got)
	}
	if got := exitCode(errBuildFailed); got != exitBuildFailed {
		t.Fatalf("exitCode(build failed) = %d", got)
	}
	if got := exitCode(errors.New("bad flag")); got != exitUsage {
		t.Fatalf("exitCode(other) = %d", got)
	}
}

func TestDescribeTermination(t *testing.T) {
	cases := []struct {
		term buildpipeline.Termination
		want string
	}{
		{buildpipeline.Termination{State: buildpipeline.StateExited}, ""},
		{buildpipeline.Termination{State: buildpipeline.StateExited, Code: 2}, "build exited with code 2"},
		{buildpipeline.Termination{State: buildpipeline.StateException, Code: -1, Signal: "SIGSEGV"}, "build terminated by SIGSEGV"},
		{buildpipeline.Termination{State: buildpipeline.StateExpired, Code: -1, Elapsed: 1500 * time.Millisecond}, "build expired after 1.5s"},
		{buildpipeline.Termination{State: buildpipeline.StateLaunchFailed, Code: -1}, "build could not be started"},
	}
	for _, tc := range cases {
		if got := describeTermination(tc.term); got != tc.want {
			t.Fatalf("describeTermination(%v) = %q, want %q", tc.term.State, got, tc.want)
		}
	}
}

func TestClassifySamples(t *testing.T) {
	got := classifySamples(rules.Default(), []string{
		"main.c:12: error: 'x' undeclared",
		"main.c:3: warning: unused variable 'y'",
		"cc -o main main.c",
	})
	if len(got) != 3 {
		t.Fatalf("got %d lines", len(got))
	}
	if got[0].Class != "error" || got[0].File != "main.c" || got[0].Line != 12 {
		t.Fatalf("unexpected first line: %+v", got[0])
	}
	if got[1].Class != "warning" {
		t.Fatalf("unexpected second line: %+v", got[1])
	}
	if got[2].Class != "regular" || got[2].File != "" {
		t.Fatalf("unexpected third line: %+v", got[2])
	}
}

func TestPrintStageTimings(t *testing.T) {
	var timings buildpipeline.Timings
	timings.Set(buildpipeline.StageRun, 1500*time.Microsecond)
	timings.Set(buildpipeline.StagePrepare, 300*time.Microsecond)
	var buf bytes.Buffer
	if err := printStageTimings(&buf, timings); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "prepared 0.3 ms\nran 1.5 ms\n"; got != want {
		t.Fatalf("timings = %q, want %q", got, want)
	}
}

func TestInitWritesConfigOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	var out bytes.Buffer
	initCmd.SetOut(&out)
	defer initCmd.SetOut(nil)

	if err := runInit(initCmd, []string{dir}); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "buildscan.toml"))
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "max_errors = 50") {
		t.Fatalf("unexpected template:\n%s", data)
	}
	if err := runInit(initCmd, []string{dir}); err == nil || !strings.Contains(err.Error(), "already initialized") {
		t.Fatalf("second init should refuse, got %v", err)
	}
}
