package scrape

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"buildscan/internal/diag"
	"buildscan/internal/rules"
	"buildscan/internal/trace"
)

func newTestAssembler(t *testing.T, opts Options) *Assembler {
	t.Helper()
	if opts.MaxErrors == 0 && opts.MaxWarnings == 0 {
		opts.MaxErrors, opts.MaxWarnings = DefaultMaxErrors, DefaultMaxWarnings
	}
	if opts.MaxPreContext == 0 && opts.MaxPostContext == 0 {
		opts.MaxPreContext, opts.MaxPostContext = DefaultMaxPreContext, DefaultMaxPostContext
	}
	a, err := NewAssembler(opts)
	require.NoError(t, err)
	return a
}

func TestScenarioErrorNoteWarning(t *testing.T) {
	a := newTestAssembler(t, Options{})
	a.Feed([]byte("foo.c:10: error: x\nnote: see above\nbar.c:5: warning: y\n"), Stdout)
	a.Finish()

	items := a.Timeline().Items()
	require.Len(t, items, 2)

	require.Equal(t, diag.KindError, items[0].Kind)
	require.Equal(t, "foo.c", items[0].SourceFile)
	require.Equal(t, 10, items[0].SourceLine)
	require.Equal(t, uint64(1), items[0].Seq)
	require.Equal(t, []string{"note: see above"}, items[0].PostContext)

	require.Equal(t, diag.KindWarning, items[1].Kind)
	require.Equal(t, "bar.c", items[1].SourceFile)
	require.Equal(t, 5, items[1].SourceLine)
	require.Equal(t, uint64(3), items[1].Seq)
}

func TestQuotaMonotonicity(t *testing.T) {
	a := newTestAssembler(t, Options{MaxErrors: 50, MaxWarnings: 50})
	var sb strings.Builder
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&sb, "src%d.c:%d: error: broken\n", i, i)
	}
	a.Feed([]byte(sb.String()), Stderr)
	a.Finish()

	tl := a.Timeline()
	require.Equal(t, 50, tl.Len())
	require.Equal(t, uint(50), tl.Errors())
	require.True(t, a.Quotas().Error.Exhausted)
	require.Equal(t, "src50.c:50: error: broken", tl.At(49).Text)
	// Lines past the cap are ordinary output now and become post-context.
	require.Len(t, tl.At(49).PostContext, DefaultMaxPostContext)
	require.Equal(t, uint64(60), a.Progress().Lines)
}

func TestContextBound(t *testing.T) {
	a := newTestAssembler(t, Options{MaxPreContext: 3, MaxPostContext: 2, MaxErrors: 10, MaxWarnings: 10})
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "pre %d\n", i)
	}
	sb.WriteString("a.c:1: error: one\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, "mid %d\n", i)
	}
	sb.WriteString("b.c:2: error: two\n")
	sb.WriteString("tail\n")
	a.Feed([]byte(sb.String()), Stdout)
	a.Finish()

	items := a.Timeline().Items()
	require.Len(t, items, 2)
	require.Equal(t, []string{"pre 5", "pre 6", "pre 7"}, items[0].PreContext)
	require.Equal(t, []string{"mid 0", "mid 1"}, items[0].PostContext)
	require.Equal(t, []string{"mid 2", "mid 3", "mid 4"}, items[1].PreContext)
	require.Equal(t, []string{"tail"}, items[1].PostContext)
	for _, d := range items {
		require.LessOrEqual(t, len(d.PreContext), 3)
		require.LessOrEqual(t, len(d.PostContext), 2)
	}
}

func TestZeroContextCapacity(t *testing.T) {
	a, err := NewAssembler(Options{MaxErrors: 5, MaxWarnings: 5})
	require.NoError(t, err)
	a.Feed([]byte("before\nx.c:1: error: e\nafter\n"), Stdout)
	a.Finish()

	d := a.Timeline().At(0)
	require.Empty(t, d.PreContext)
	require.Empty(t, d.PostContext)
}

func TestPartialLinesAcrossChunksAndStreams(t *testing.T) {
	a := newTestAssembler(t, Options{})
	a.Feed([]byte("foo.c:1: err"), Stdout)
	a.Feed([]byte("bar.c:2: warning: w\n"), Stderr)
	a.Feed([]byte("or: split\n"), Stdout)
	a.Finish()

	items := a.Timeline().Items()
	require.Len(t, items, 2)
	require.Equal(t, "bar.c:2: warning: w", items[0].Text)
	require.Equal(t, "foo.c:1: error: split", items[1].Text)
}

func TestFinishFlushesStdoutBeforeStderr(t *testing.T) {
	a := newTestAssembler(t, Options{})
	a.Feed([]byte("e.c:2: warning: from stderr"), Stderr)
	a.Feed([]byte("o.c:1: error: from stdout"), Stdout)
	a.Finish()

	items := a.Timeline().Items()
	require.Len(t, items, 2)
	require.Equal(t, "o.c:1: error: from stdout", items[0].Text)
	require.Equal(t, "e.c:2: warning: from stderr", items[1].Text)

	a.Finish()
	require.Equal(t, 2, a.Timeline().Len())
}

func TestNULAndCarriageReturn(t *testing.T) {
	a := newTestAssembler(t, Options{})
	a.Feed([]byte("first\x00a.c:3: error: nul\r\n"), Stdout)
	a.Finish()

	items := a.Timeline().Items()
	require.Len(t, items, 1)
	require.Equal(t, "a.c:3: error: nul", items[0].Text)
	require.Equal(t, []string{"first"}, items[0].PreContext)
	require.Equal(t, uint64(2), items[0].Seq)
}

func TestLegacyEncoding(t *testing.T) {
	a := newTestAssembler(t, Options{Encoding: "windows-1252"})
	// 0xE9 is e-acute in windows-1252.
	a.Feed([]byte("caf\xe9.c:7: error: bad\n"), Stdout)
	a.Finish()

	d := a.Timeline().At(0)
	require.NotNil(t, d)
	require.Equal(t, "café.c:7: error: bad", d.Text)
}

func TestWideEncodingDecodedBeforeSplitting(t *testing.T) {
	a := newTestAssembler(t, Options{Encoding: "utf-16le"})
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, err := enc.Bytes([]byte("foo.c:10: error: x\nnote\n"))
	require.NoError(t, err)
	errOut, err := enc.Bytes([]byte("w.c:2: warning: tail"))
	require.NoError(t, err)

	// Odd chunk sizes split code units across reads.
	for len(out) > 0 || len(errOut) > 0 {
		n := min(3, len(out))
		a.Feed(out[:n], Stdout)
		out = out[n:]
		n = min(5, len(errOut))
		a.Feed(errOut[:n], Stderr)
		errOut = errOut[n:]
	}
	a.Finish()

	require.Equal(t, uint64(3), a.Progress().Lines)
	items := a.Timeline().Items()
	require.Len(t, items, 2)
	require.Equal(t, diag.KindError, items[0].Kind)
	require.Equal(t, "foo.c:10: error: x", items[0].Text)
	require.Equal(t, "foo.c", items[0].SourceFile)
	require.Equal(t, 10, items[0].SourceLine)
	require.Equal(t, []string{"note"}, items[0].PostContext)
	require.Equal(t, diag.KindWarning, items[1].Kind)
	require.Equal(t, "w.c:2: warning: tail", items[1].Text)
}

func TestInvalidUTF8Replaced(t *testing.T) {
	a := newTestAssembler(t, Options{})
	a.Feed([]byte("x.c:1: error: \xff\n"), Stdout)
	a.Finish()
	require.Equal(t, "x.c:1: error: \uFFFD", a.Timeline().At(0).Text)
}

func TestUnknownEncoding(t *testing.T) {
	_, err := NewAssembler(Options{Encoding: "klingon-8"})
	require.Error(t, err)
	require.NoError(t, ValidateEncoding("latin1"))
}

func TestAppendSyntheticBypassesQuota(t *testing.T) {
	a := newTestAssembler(t, Options{MaxErrors: 1, MaxWarnings: 1})
	a.Feed([]byte("x.c:1: warning: w\n"), Stdout)
	a.AppendSynthetic(diag.Diagnostic{Kind: diag.KindWarning, Text: "*** WARNING non-zero return value from: make"})

	tl := a.Timeline()
	require.Equal(t, 2, tl.Len())
	require.True(t, tl.At(1).Synthetic)
	require.Equal(t, uint(1), a.Quotas().Warning.Count)
}

func TestProgressCallback(t *testing.T) {
	var last Progress
	calls := 0
	a := newTestAssembler(t, Options{OnProgress: func(p Progress) {
		calls++
		last = p
	}})
	a.Feed([]byte("one\ntwo.c:1: error: e\nthree\n"), Stdout)
	require.Equal(t, 3, calls)
	require.Equal(t, Progress{Lines: 3, Errors: 1}, last)
}

func TestQuotaExhaustionTraced(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelDetail)
	a := newTestAssembler(t, Options{MaxErrors: 1, MaxWarnings: 1, Tracer: ring, Rules: rules.Default()})
	a.Feed([]byte("a.c:1: error: e\nb.c:2: error: e\n"), Stdout)

	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	require.Equal(t, []string{"quota.exhausted"}, names)
}

func TestContextWindowRingOrder(t *testing.T) {
	w := NewContextWindow(2, 0)
	for _, l := range []string{"a", "b", "c"} {
		require.Equal(t, -1, w.Offer(l))
	}
	require.Equal(t, []string{"b", "c"}, w.Drain())
	require.Nil(t, w.Drain())
	require.Equal(t, 0, w.Pending())
}
