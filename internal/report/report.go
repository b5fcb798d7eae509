// Package report assembles the final bounded diagnostic report.
package report

import (
	"buildscan/internal/diag"
	"buildscan/internal/launcher"
)

// Entry is one item of the final report.
type Entry struct {
	Kind        diag.Kind
	Text        string
	SourceFile  string
	SourceLine  int
	PreContext  []string
	PostContext []string
	// CapNotice marks the entry at which its kind reached the configured maximum.
	CapNotice bool
	// Fragment marks verbatim launcher fragment content.
	Fragment  bool
	Synthetic bool
	Seq       uint64
}

// Input carries the collected diagnostics of one run. Diagnostics and
// Fragments are mutually exclusive; Synthetic holds driver diagnostics of a
// launcher run and is emitted after the fragments.
type Input struct {
	Diagnostics []diag.Diagnostic
	Fragments   []launcher.Entry
	Synthetic   []diag.Diagnostic
}

// Options bounds and post-processes the report.
type Options struct {
	MaxErrors   uint
	MaxWarnings uint
	SourceDir   string
	BuildDir    string
}

// Build converts in into report entries and applies the emission cap.
func Build(in Input, opts Options) []Entry {
	var entries []Entry
	if len(in.Fragments) > 0 || len(in.Synthetic) > 0 {
		entries = make([]Entry, 0, len(in.Fragments)+len(in.Synthetic))
		for _, f := range in.Fragments {
			entries = append(entries, Entry{Kind: f.Kind, Text: f.Content, Fragment: true})
		}
		for _, d := range in.Synthetic {
			entries = append(entries, fromDiagnostic(d))
		}
	}
	if len(in.Diagnostics) > 0 {
		scraped := make([]Entry, 0, len(in.Diagnostics))
		for _, d := range in.Diagnostics {
			scraped = append(scraped, fromDiagnostic(d))
		}
		ShortenPaths(scraped, opts.SourceDir, opts.BuildDir)
		entries = append(entries, scraped...)
	}
	return applyCaps(entries, opts.MaxErrors, opts.MaxWarnings)
}

func fromDiagnostic(d diag.Diagnostic) Entry {
	d = d.Clone()
	return Entry{
		Kind:        d.Kind,
		Text:        d.Text,
		SourceFile:  d.SourceFile,
		SourceLine:  d.SourceLine,
		PreContext:  d.PreContext,
		PostContext: d.PostContext,
		Synthetic:   d.Synthetic,
		Seq:         d.Seq,
	}
}

// applyCaps re-counts both kinds from zero, independently of any quota
// applied while collecting.
func applyCaps(entries []Entry, maxErrors, maxWarnings uint) []Entry {
	quotas := diag.NewQuotaState(maxErrors, maxWarnings)
	out := entries[:0]
	for _, e := range entries {
		q := quotas.For(e.Kind)
		if !q.Take() {
			continue
		}
		e.CapNotice = q.Exhausted
		out = append(out, e)
	}
	return out
}

// Counts returns the number of error and warning entries.
func Counts(entries []Entry) (errors, warnings uint) {
	for i := range entries {
		switch entries[i].Kind {
		case diag.KindError:
			errors++
		case diag.KindWarning:
			warnings++
		}
	}
	return errors, warnings
}
