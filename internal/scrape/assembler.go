package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"fortio.org/safecast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"buildscan/internal/diag"
	"buildscan/internal/rules"
	"buildscan/internal/trace"
)

// Stream identifies the pipe a chunk was read from.
type Stream uint8

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

const (
	DefaultMaxErrors      = 50
	DefaultMaxWarnings    = 50
	DefaultMaxPreContext  = 10
	DefaultMaxPostContext = 10
)

// Progress is a snapshot of the assembler counters.
type Progress struct {
	Lines    uint64
	Errors   uint
	Warnings uint
}

// Options configures an Assembler.
type Options struct {
	Rules          *rules.RuleSet
	MaxErrors      uint
	MaxWarnings    uint
	MaxPreContext  uint
	MaxPostContext uint
	// Encoding names the charset of the build output (WHATWG label).
	// Empty means UTF-8. Each stream is decoded before lines are split,
	// so wide encodings such as UTF-16 work too.
	Encoding string
	// OnProgress is called after every emitted line.
	OnProgress func(Progress)
	Tracer     trace.Tracer
}

// Assembler splits raw output into lines and builds the diagnostic timeline.
type Assembler struct {
	rules    *rules.RuleSet
	quotas   diag.QuotaState
	window   *ContextWindow
	timeline *diag.Timeline
	bufs     [2][]byte
	lines    uint64
	decoders [2]*streamDecoder
	progress func(Progress)
	tracer   trace.Tracer
}

// NewAssembler validates opts and returns a ready Assembler.
func NewAssembler(opts Options) (*Assembler, error) {
	rs := opts.Rules
	if rs == nil {
		rs = rules.Default()
	}
	maxPre, err := safecast.Conv[int](opts.MaxPreContext)
	if err != nil {
		return nil, fmt.Errorf("max pre-context: %w", err)
	}
	maxPost, err := safecast.Conv[int](opts.MaxPostContext)
	if err != nil {
		return nil, fmt.Errorf("max post-context: %w", err)
	}
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	a := &Assembler{
		rules:    rs,
		quotas:   diag.NewQuotaState(opts.MaxErrors, opts.MaxWarnings),
		window:   NewContextWindow(maxPre, maxPost),
		timeline: diag.NewTimeline(16),
		progress: opts.OnProgress,
		tracer:   tr,
	}
	if enc != nil {
		for i := range a.decoders {
			a.decoders[i] = &streamDecoder{t: enc.NewDecoder()}
		}
	}
	return a, nil
}

// lookupEncoding returns nil for UTF-8, which needs no decoding.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output encoding %q: %w", name, err)
	}
	return enc, nil
}

// ValidateEncoding reports whether name is an accepted output encoding.
func ValidateEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}

// streamDecoder converts one stream to UTF-8 chunk by chunk, holding back
// an incomplete trailing sequence until the next chunk.
type streamDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func (d *streamDecoder) decode(chunk []byte, atEOF bool) []byte {
	src := append(d.pending, chunk...)
	d.pending = nil
	if need := 3*len(src) + 16; cap(d.dst) < need {
		d.dst = make([]byte, need)
	}
	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(d.dst[:cap(d.dst)], src, atEOF)
		out = append(out, d.dst[:nDst]...)
		src = src[nSrc:]
		switch {
		case err == nil:
			return out
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*cap(d.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out
		default:
			if len(src) == 0 {
				return out
			}
			out = append(out, "\uFFFD"...)
			src = src[1:]
		}
	}
}

// Feed appends chunk to the buffer of origin and emits every complete line.
// NUL bytes are treated as line terminators.
func (a *Assembler) Feed(chunk []byte, origin Stream) {
	if dec := a.decoders[origin]; dec != nil {
		chunk = dec.decode(chunk, false)
	}
	a.split(chunk, origin)
}

func (a *Assembler) split(chunk []byte, origin Stream) {
	if len(chunk) == 0 {
		return
	}
	buf := append(a.bufs[origin], chunk...)
	start := len(buf) - len(chunk)
	for i := start; i < len(buf); i++ {
		if buf[i] == 0 {
			buf[i] = '\n'
		}
	}
	for {
		nl := bytes.IndexByte(buf, '\n')
		if nl < 0 {
			break
		}
		a.emit(buf[:nl])
		buf = buf[nl+1:]
	}
	// Keep the residue in a fresh slice so the consumed prefix can be collected.
	a.bufs[origin] = append(a.bufs[origin][:0], buf...)
}

// Finish flushes unterminated residue, stdout first.
func (a *Assembler) Finish() {
	for _, s := range []Stream{Stdout, Stderr} {
		if dec := a.decoders[s]; dec != nil && len(dec.pending) > 0 {
			a.split(dec.decode(nil, true), s)
		}
		if len(a.bufs[s]) > 0 {
			a.emit(a.bufs[s])
			a.bufs[s] = a.bufs[s][:0]
		}
	}
}

func (a *Assembler) emit(raw []byte) {
	line := a.decode(bytes.TrimSuffix(raw, []byte{'\r'}))
	a.lines++

	class := rules.Classify(line, a.quotas, a.rules)
	kind, ok := class.Kind()
	if !ok {
		if idx := a.window.Offer(line); idx >= 0 {
			a.timeline.AppendPostContext(idx, line)
		}
		a.report()
		return
	}

	quota := a.quotas.For(kind)
	quota.Take()
	d := diag.Diagnostic{
		Kind:       kind,
		Seq:        a.lines,
		Text:       line,
		PreContext: a.window.Drain(),
	}
	if loc, found := a.rules.Locate(line); found {
		d.SourceFile = loc.File
		d.SourceLine = loc.Line
	}
	idx := a.timeline.Append(d)
	a.window.Attach(idx)

	trace.Point(a.tracer, trace.ScopeLine, "diag."+kind.String(), line, nil)
	if quota.Exhausted {
		trace.Point(a.tracer, trace.ScopeStream, "quota.exhausted", kind.String(), map[string]string{
			"limit": fmt.Sprint(quota.Limit),
			"seq":   fmt.Sprint(a.lines),
		})
	}
	a.report()
}

func (a *Assembler) decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

func (a *Assembler) report() {
	if a.progress != nil {
		a.progress(a.Progress())
	}
}

// AppendSynthetic adds a driver-produced diagnostic. It bypasses the
// classifier and the quotas and does not take post-context.
func (a *Assembler) AppendSynthetic(d diag.Diagnostic) {
	d.Synthetic = true
	if d.Seq == 0 {
		d.Seq = a.lines
	}
	a.timeline.Append(d)
	a.report()
}

// Progress returns the current counters.
func (a *Assembler) Progress() Progress {
	return Progress{
		Lines:    a.lines,
		Errors:   a.timeline.Errors(),
		Warnings: a.timeline.Warnings(),
	}
}

// Timeline returns the diagnostics collected so far.
func (a *Assembler) Timeline() *diag.Timeline {
	return a.timeline
}

// Quotas returns the collection-time quota state.
func (a *Assembler) Quotas() diag.QuotaState {
	return a.quotas
}
