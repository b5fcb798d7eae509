package diag

// Diagnostic is one classified error or warning with its captured context.
type Diagnostic struct {
	Kind Kind
	// Seq is the 1-based number of the log line that produced the diagnostic.
	Seq  uint64
	Text string
	// SourceFile is empty when no location rule matched.
	SourceFile string
	// SourceLine is 0 when no line number was resolved.
	SourceLine  int
	PreContext  []string
	PostContext []string
	// Synthetic marks diagnostics produced from process state rather than output text.
	Synthetic bool
}

// HasLocation reports whether a source file was resolved.
func (d *Diagnostic) HasLocation() bool {
	return d != nil && d.SourceFile != ""
}

// Clone returns a deep copy; context slices are not shared.
func (d Diagnostic) Clone() Diagnostic {
	out := d
	if d.PreContext != nil {
		out.PreContext = append([]string(nil), d.PreContext...)
	}
	if d.PostContext != nil {
		out.PostContext = append([]string(nil), d.PostContext...)
	}
	return out
}
