package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"buildscan/internal/diag"
	"buildscan/internal/trace"
)

func writeFragment(t *testing.T, dir, name, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		kind diag.Kind
		ok   bool
	}{
		{"error-1.xml", diag.KindError, true},
		{"warning-abc.xml", diag.KindWarning, true},
		{"error-1.txt", 0, false},
		{"notes-1.xml", 0, false},
		{"Error-1.xml", 0, false},
	}
	for _, tt := range tests {
		kind, ok := KindOf(tt.name)
		if kind != tt.kind || ok != tt.ok {
			t.Fatalf("KindOf(%q) = %v, %v; want %v, %v", tt.name, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestMergeOrdersByModTimeThenName(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	writeFragment(t, dir, "warning-b.xml", "<w b/>", base.Add(2*time.Second))
	writeFragment(t, dir, "error-z.xml", "<e z/>", base)
	writeFragment(t, dir, "error-a.xml", "<e a/>", base.Add(2*time.Second))
	writeFragment(t, dir, "warning-a.xml", "<w a/>", base.Add(time.Second))
	writeFragment(t, dir, "readme.txt", "ignored", base)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "error-dir.xml"), 0o750))

	entries, err := Merge(dir, 50, 50, trace.Nop)
	require.NoError(t, err)
	require.Equal(t, []string{"error-z.xml", "warning-a.xml", "error-a.xml", "warning-b.xml"}, names(entries))
	require.Equal(t, "<e z/>", entries[0].Content)
	require.Equal(t, diag.KindWarning, entries[1].Kind)
}

func TestMergeIndependentCaps(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	writeFragment(t, dir, "error-1.xml", "e1", base)
	writeFragment(t, dir, "error-2.xml", "e2", base.Add(time.Second))
	writeFragment(t, dir, "warning-1.xml", "w1", base.Add(2*time.Second))
	writeFragment(t, dir, "error-3.xml", "e3", base.Add(3*time.Second))
	writeFragment(t, dir, "warning-2.xml", "w2", base.Add(4*time.Second))

	entries, err := Merge(dir, 1, 2, trace.Nop)
	require.NoError(t, err)
	require.Equal(t, []string{"error-1.xml", "warning-1.xml", "warning-2.xml"}, names(entries))
}

func TestMergeMissingDirectory(t *testing.T) {
	entries, err := Merge(filepath.Join(t.TempDir(), "absent"), 50, 50, trace.Nop)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLoadSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	writeFragment(t, dir, "error-1.xml", "ok", time.Now())
	frags, err := Scan(dir)
	require.NoError(t, err)
	frags = append(frags, Fragment{Path: filepath.Join(dir, "error-gone.xml"), Name: "error-gone.xml", Kind: diag.KindError})

	ring := trace.NewRingTracer(8, trace.LevelWarn)
	entries := Load(frags, ring)
	require.Len(t, entries, 1)
	events := ring.Snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "fragment.unreadable", events[0].Name)
}

func TestPrepare(t *testing.T) {
	dir, cleanup, err := Prepare("")
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	cleanup()
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	want := filepath.Join(t.TempDir(), "frags")
	got, cleanup, err := Prepare(want)
	require.NoError(t, err)
	require.Equal(t, want, got)
	cleanup()
	_, err = os.Stat(want)
	require.NoError(t, err)
}
