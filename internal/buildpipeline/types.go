package buildpipeline

import (
	"fmt"
	"strings"
	"time"
)

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StagePrepare compiles rules and sets up the fragment directory.
	StagePrepare Stage = "prepare"
	// StageRun spawns the build and collects its output.
	StageRun Stage = "run"
	// StageMerge reads launcher fragments.
	StageMerge Stage = "merge"
	// StageReport builds the final report.
	StageReport Stage = "report"
)

// Stages lists all stages in execution order.
func Stages() []Stage {
	return []Stage{StagePrepare, StageRun, StageMerge, StageReport}
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the stage is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the stage is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the stage is done.
	StatusDone Status = "done"
	// StatusError indicates the stage did not succeed.
	StatusError Status = "error"
)

// Event reports progress of a run.
type Event struct {
	Stage    Stage
	Status   Status
	Lines    uint64
	Errors   uint
	Warnings uint
	Detail   string
	Err      error
	Elapsed  time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Mode selects how diagnostics are collected.
type Mode string

const (
	// ModeScrape classifies the build output text.
	ModeScrape Mode = "scrape"
	// ModeLauncher merges fragment files written by compiler wrappers.
	ModeLauncher Mode = "launcher"
)

// ParseMode converts a string into a Mode. Empty selects ModeScrape.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeScrape:
		return ModeScrape, nil
	case ModeLauncher:
		return ModeLauncher, nil
	default:
		return "", fmt.Errorf("%w: %q (expected scrape|launcher)", ErrUnknownMode, s)
	}
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
