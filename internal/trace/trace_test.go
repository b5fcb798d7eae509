package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestLevelShouldEmit(t *testing.T) {
	cases := []struct {
		level Level
		kind  Kind
		scope Scope
		want  bool
	}{
		{LevelOff, KindWarning, ScopeRun, false},
		{LevelWarn, KindWarning, ScopeLine, true},
		{LevelWarn, KindSpanBegin, ScopeRun, false},
		{LevelPhase, KindSpanBegin, ScopeStage, true},
		{LevelPhase, KindPoint, ScopeStream, false},
		{LevelDetail, KindPoint, ScopeStream, true},
		{LevelDetail, KindPoint, ScopeLine, false},
		{LevelDebug, KindPoint, ScopeLine, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.kind, tc.scope); got != tc.want {
			t.Fatalf("%s.ShouldEmit(%s, %s) = %v, want %v", tc.level, tc.kind, tc.scope, got, tc.want)
		}
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)

	span := Begin(tr, ScopeStage, "collect", 0)
	Warn(tr, ScopeRun, "rule.dropped", "bad pattern", map[string]string{"pattern": "("})
	Point(tr, ScopeLine, "line", "ignored at phase level", nil)
	span.WithExtra("lines", "3").End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 events, got %d:\n%s", len(lines), buf.String())
	}
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last["kind"] != "end" || last["name"] != "collect" || last["detail"] != "ok" {
		t.Fatalf("unexpected end event: %v", last)
	}
	var warn map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &warn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if warn["kind"] != "warning" {
		t.Fatalf("expected warning event, got %v", warn)
	}
}

func TestRingTracerWrapsInOrder(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(ring, ScopeRun, name, "", nil)
	}
	if ring.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ring.Len())
	}
	snap := ring.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Fatalf("snap[%d] = %q, want %q", i, snap[i].Name, want)
		}
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatText); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(buf.String(), "• e") {
		t.Fatalf("dump missing last event:\n%s", buf.String())
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Enabled() {
		t.Fatalf("off tracer must be disabled")
	}
	if RingOf(tr) != nil {
		t.Fatalf("nop tracer has no ring")
	}
}

func TestNewBothExposesRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf, RingSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Warn(tr, ScopeRun, "w", "", nil)
	ring := RingOf(tr)
	if ring == nil {
		t.Fatalf("expected ring tracer inside multi tracer")
	}
	if got := len(ring.Warnings()); got != 1 {
		t.Fatalf("ring holds %d warnings, want 1", got)
	}
	if buf.Len() == 0 {
		t.Fatalf("stream side received nothing")
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("empty context should yield Nop")
	}
	ring := NewRingTracer(4, LevelPhase)
	ctx := WithTracer(context.Background(), ring)
	if FromContext(ctx) != Tracer(ring) {
		t.Fatalf("tracer not propagated")
	}
	span := Begin(ring, ScopeRun, "run", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() {
		t.Fatalf("span id not propagated")
	}
}

func TestHeartbeatWarnsWhenBuildIsSilent(t *testing.T) {
	ring := NewRingTracer(256, LevelWarn)
	var bytesRead atomic.Uint64
	hb := StartHeartbeat(ring, 2*time.Millisecond, func() map[string]string {
		return map[string]string{"bytes": strconv.FormatUint(bytesRead.Load(), 10)}
	})
	defer hb.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range ring.Snapshot() {
			if ev.Kind == KindWarning && ev.Name == "build.silent" {
				hb.Stop()
				beats := 0
				for _, e := range ring.Snapshot() {
					if e.Kind == KindHeartbeat {
						beats++
						if e.Extra["bytes"] != "0" {
							t.Fatalf("unexpected probe sample %v", e.Extra)
						}
					}
				}
				if beats < SilentBeats+1 {
					t.Fatalf("warned after %d heartbeats", beats)
				}
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no build.silent warning emitted")
}

func TestHeartbeatDisabled(t *testing.T) {
	if hb := StartHeartbeat(Nop, time.Millisecond, nil); hb != nil {
		t.Fatal("heartbeat on a disabled tracer")
	}
	if hb := StartHeartbeat(NewRingTracer(4, LevelWarn), 0, nil); hb != nil {
		t.Fatal("heartbeat without interval")
	}
	var hb *Heartbeat
	hb.Stop()
}
