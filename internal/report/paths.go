package report

import (
	"path/filepath"
	"sort"
	"strings"
)

// Placeholder replaces long source and build directory prefixes.
const Placeholder = "/..."

// ShortenPaths replaces the source and build directories with Placeholder in
// text and context lines, and makes absolute source files relative to the
// source directory, or else the build directory. Applying it twice yields the
// same result as applying it once.
func ShortenPaths(entries []Entry, sourceDir, buildDir string) {
	dirs := shortenable(sourceDir, buildDir)
	if len(dirs) == 0 {
		return
	}
	r := strings.NewReplacer(replacerPairs(dirs)...)
	for i := range entries {
		e := &entries[i]
		e.Text = r.Replace(e.Text)
		replaceAll(r, e.PreContext)
		replaceAll(r, e.PostContext)
		e.SourceFile = relativeTo(e.SourceFile, cleanDir(sourceDir), cleanDir(buildDir))
	}
}

func replaceAll(r *strings.Replacer, lines []string) {
	for i := range lines {
		lines[i] = r.Replace(lines[i])
	}
}

// shortenable returns the usable directories, longest first so a build tree
// nested in the source tree is matched whole.
func shortenable(dirs ...string) []string {
	var out []string
	for _, d := range dirs {
		if c := cleanDir(d); c != "" {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// cleanDir rejects directories whose replacement could match its own output.
func cleanDir(dir string) string {
	if dir == "" {
		return ""
	}
	c := filepath.Clean(dir)
	if !filepath.IsAbs(c) || c == string(filepath.Separator) || strings.Contains(c, "...") {
		return ""
	}
	return c
}

func replacerPairs(dirs []string) []string {
	pairs := make([]string, 0, 2*len(dirs))
	for _, d := range dirs {
		pairs = append(pairs, d, Placeholder)
	}
	return pairs
}

func relativeTo(file, sourceDir, buildDir string) string {
	if file == "" || !filepath.IsAbs(file) {
		return file
	}
	for _, dir := range []string{sourceDir, buildDir} {
		if dir == "" {
			continue
		}
		if rel, ok := within(file, dir); ok {
			return rel
		}
	}
	return file
}

func within(file, dir string) (string, bool) {
	rel, err := filepath.Rel(dir, filepath.Clean(file))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
