// Package launcher collects diagnostics written to disk by per-invocation
// compiler wrappers.
//
// Each wrapper writes one file per diagnostic into a shared directory, named
// error-<id>.xml or warning-<id>.xml. The fragments are opaque: their
// content is passed through verbatim.
package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"buildscan/internal/diag"
	"buildscan/internal/trace"
)

// EnvVar names the fragment directory for wrappers running inside the build.
const EnvVar = "BUILDSCAN_LAUNCH_LOGS"

const fragmentExt = ".xml"

// Fragment is one diagnostic file found in the fragment directory.
type Fragment struct {
	Path    string
	Name    string
	ModTime time.Time
	Kind    diag.Kind
}

// Entry is an accepted fragment with its content.
type Entry struct {
	Fragment
	Content string
}

// KindOf classifies a file name by the fragment naming convention.
func KindOf(name string) (diag.Kind, bool) {
	if !strings.HasSuffix(name, fragmentExt) {
		return 0, false
	}
	switch {
	case strings.HasPrefix(name, "error-"):
		return diag.KindError, true
	case strings.HasPrefix(name, "warning-"):
		return diag.KindWarning, true
	}
	return 0, false
}

// Scan lists the fragments in dir ordered by modification time, then name.
// A missing directory yields no fragments.
func Scan(dir string) ([]Fragment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list fragment directory: %w", err)
	}
	frags := make([]Fragment, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, ok := KindOf(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		frags = append(frags, Fragment{
			Path:    filepath.Join(dir, e.Name()),
			Name:    e.Name(),
			ModTime: info.ModTime(),
			Kind:    kind,
		})
	}
	Sort(frags)
	return frags, nil
}

// Sort orders fragments by ModTime ascending with ties broken by Name.
func Sort(frags []Fragment) {
	sort.SliceStable(frags, func(i, j int) bool {
		if !frags[i].ModTime.Equal(frags[j].ModTime) {
			return frags[i].ModTime.Before(frags[j].ModTime)
		}
		return frags[i].Name < frags[j].Name
	})
}

// Select keeps at most maxErrors error and maxWarnings warning fragments,
// preserving order. The two caps are independent.
func Select(frags []Fragment, maxErrors, maxWarnings uint) []Fragment {
	quotas := diag.NewQuotaState(maxErrors, maxWarnings)
	out := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if quotas.For(f.Kind).Take() {
			out = append(out, f)
		}
	}
	return out
}

// Load reads each fragment verbatim. Unreadable files are skipped with a
// warning event on tr.
func Load(frags []Fragment, tr trace.Tracer) []Entry {
	out := make([]Entry, 0, len(frags))
	for _, f := range frags {
		// #nosec G304 -- path comes from listing the fragment directory
		data, err := os.ReadFile(f.Path)
		if err != nil {
			trace.Warn(tr, trace.ScopeStage, "fragment.unreadable", err.Error(), map[string]string{"path": f.Path})
			continue
		}
		out = append(out, Entry{Fragment: f, Content: string(data)})
	}
	return out
}

// Merge runs Scan, Select and Load over dir.
func Merge(dir string, maxErrors, maxWarnings uint, tr trace.Tracer) ([]Entry, error) {
	frags, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	selected := Select(frags, maxErrors, maxWarnings)
	trace.Point(tr, trace.ScopeStage, "fragments.selected", "", map[string]string{
		"found":    fmt.Sprint(len(frags)),
		"selected": fmt.Sprint(len(selected)),
	})
	return Load(selected, tr), nil
}

// Prepare returns the fragment directory for a run. With an empty dir a
// fresh temporary directory is created and cleanup removes it; a supplied
// directory is created if needed and left in place.
func Prepare(dir string) (string, func(), error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "buildscan-launch-*")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create fragment directory: %w", err)
		}
		return tmp, func() { _ = os.RemoveAll(tmp) }, nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", nil, fmt.Errorf("failed to create fragment directory: %w", err)
	}
	return dir, func() {}, nil
}
