package trace

import (
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"
)

// Probe samples the state reported with each heartbeat. It is called from
// the heartbeat goroutine and must be safe for concurrent use.
type Probe func() map[string]string

// SilentBeats is the number of consecutive heartbeats with an unchanged
// probe sample after which a "build.silent" warning is emitted.
const SilentBeats = 3

// Heartbeat periodically emits liveness events while a build runs.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	probe    Probe
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// StartHeartbeat emits a heartbeat every interval until Stop. probe may be nil.
// It returns nil when tracing is disabled or interval is not positive.
func StartHeartbeat(tracer Tracer, interval time.Duration, probe Probe) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		probe:    probe,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var (
		beat   uint64
		last   map[string]string
		silent int
		warned bool
	)
	for {
		select {
		case <-ticker.C:
			beat++
			var sample map[string]string
			if h.probe != nil {
				sample = h.probe()
			}
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeRun,
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d", beat),
				Extra:  sample,
			})
			if h.probe == nil {
				continue
			}
			if beat > 1 && maps.Equal(sample, last) {
				silent++
			} else {
				silent, warned = 0, false
			}
			last = sample
			if silent >= SilentBeats && !warned {
				warned = true
				Warn(h.tracer, ScopeRun, "build.silent",
					"no progress for "+(time.Duration(silent)*h.interval).String(),
					map[string]string{"beats": strconv.Itoa(silent)})
			}
		case <-h.stopCh:
			return
		}
	}
}

// Stop stops the heartbeat goroutine and waits for it to finish.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.stopCh)
		h.wg.Wait()
	})
}
