package diag

// Timeline is the append-only, chronologically ordered list of diagnostics
// produced by one run.
type Timeline struct {
	items    []Diagnostic
	errors   uint
	warnings uint
}

// NewTimeline preallocates room for hint diagnostics.
func NewTimeline(hint int) *Timeline {
	if hint < 0 {
		hint = 0
	}
	return &Timeline{items: make([]Diagnostic, 0, hint)}
}

// Append adds d and returns its index.
func (t *Timeline) Append(d Diagnostic) int {
	t.items = append(t.items, d)
	switch d.Kind {
	case KindError:
		t.errors++
	case KindWarning:
		t.warnings++
	}
	return len(t.items) - 1
}

// AppendPostContext extends the post-context of the diagnostic at idx.
func (t *Timeline) AppendPostContext(idx int, line string) {
	if idx < 0 || idx >= len(t.items) {
		return
	}
	t.items[idx].PostContext = append(t.items[idx].PostContext, line)
}

// At returns the diagnostic at idx.
func (t *Timeline) At(idx int) *Diagnostic {
	if idx < 0 || idx >= len(t.items) {
		return nil
	}
	return &t.items[idx]
}

// Len returns the number of diagnostics.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.items)
}

// Errors returns the number of error diagnostics appended so far.
func (t *Timeline) Errors() uint { return t.errors }

// Warnings returns the number of warning diagnostics appended so far.
func (t *Timeline) Warnings() uint { return t.warnings }

// Items returns a read-only view of the diagnostics.
// The returned slice aliases the timeline; do not modify it.
func (t *Timeline) Items() []Diagnostic {
	if t == nil {
		return nil
	}
	return t.items
}

// Snapshot returns a deep copy of all diagnostics.
func (t *Timeline) Snapshot() []Diagnostic {
	if t == nil {
		return nil
	}
	out := make([]Diagnostic, len(t.items))
	for i := range t.items {
		out[i] = t.items[i].Clone()
	}
	return out
}
