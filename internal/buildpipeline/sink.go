package buildpipeline

import "time"

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// FuncSink adapts a function to ProgressSink.
type FuncSink func(Event)

func (f FuncSink) OnEvent(evt Event) {
	if f != nil {
		f(evt)
	}
}

func emitStage(sink ProgressSink, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

const progressInterval = 100 * time.Millisecond

// progressThrottle forwards assembler counters as StageRun events, at most
// once per progressInterval unless a diagnostic count changed.
type progressThrottle struct {
	sink     ProgressSink
	last     time.Time
	errors   uint
	warnings uint
}

func (p *progressThrottle) observe(lines uint64, errors, warnings uint) {
	if p == nil || p.sink == nil {
		return
	}
	now := time.Now()
	if errors == p.errors && warnings == p.warnings && now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now
	p.errors = errors
	p.warnings = warnings
	p.sink.OnEvent(Event{Stage: StageRun, Status: StatusWorking, Lines: lines, Errors: errors, Warnings: warnings})
}
