package diag

import "testing"

func TestQuotaStickyExhaustion(t *testing.T) {
	q := NewQuota(2)
	if !q.Take() || !q.Take() {
		t.Fatalf("expected two slots to be available")
	}
	if !q.Exhausted {
		t.Fatalf("quota should be exhausted after reaching its limit")
	}
	if q.Take() {
		t.Fatalf("exhausted quota accepted another diagnostic")
	}
	if q.Count != 2 {
		t.Fatalf("Count = %d, want 2", q.Count)
	}
	if q.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", q.Remaining())
	}
}

func TestQuotaZeroLimit(t *testing.T) {
	q := NewQuota(0)
	if !q.Exhausted {
		t.Fatalf("zero limit must start exhausted")
	}
	if q.Take() {
		t.Fatalf("zero limit accepted a diagnostic")
	}
}

func TestQuotaStateIndependentKinds(t *testing.T) {
	s := NewQuotaState(1, 3)
	s.For(KindError).Take()
	if !s.Error.Exhausted {
		t.Fatalf("error quota should be exhausted")
	}
	if s.Warning.Exhausted || s.Warning.Count != 0 {
		t.Fatalf("warning quota touched by error take: %+v", s.Warning)
	}
}

func TestTimelineCountsAndPostContext(t *testing.T) {
	tl := NewTimeline(4)
	idx := tl.Append(Diagnostic{Kind: KindError, Seq: 1, Text: "boom"})
	tl.Append(Diagnostic{Kind: KindWarning, Seq: 2, Text: "hmm"})
	tl.AppendPostContext(idx, "after")
	tl.AppendPostContext(99, "ignored")

	if tl.Errors() != 1 || tl.Warnings() != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", tl.Errors(), tl.Warnings())
	}
	snap := tl.Snapshot()
	if len(snap[0].PostContext) != 1 || snap[0].PostContext[0] != "after" {
		t.Fatalf("post context = %v", snap[0].PostContext)
	}
	snap[0].PostContext[0] = "mutated"
	if tl.At(0).PostContext[0] != "after" {
		t.Fatalf("snapshot shares context storage with the timeline")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"error": KindError, "WARNING": KindWarning} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("note"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
