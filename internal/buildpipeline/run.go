// Package buildpipeline runs a build command and turns its output into a
// bounded diagnostic report.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"buildscan/internal/diag"
	"buildscan/internal/launcher"
	"buildscan/internal/report"
	"buildscan/internal/rules"
	"buildscan/internal/scrape"
	"buildscan/internal/trace"
)

var (
	// ErrEmptyCommand is returned for a blank build command.
	ErrEmptyCommand = errors.New("empty build command")
	// ErrUnknownMode is returned for a collection mode other than scrape or launcher.
	ErrUnknownMode = errors.New("unknown collection mode")
)

// Limits bounds collection and emission.
type Limits struct {
	MaxErrors      uint
	MaxWarnings    uint
	MaxPreContext  uint
	MaxPostContext uint
}

// DefaultLimits returns 50 errors, 50 warnings and 10 lines of context on each side.
func DefaultLimits() Limits {
	return Limits{
		MaxErrors:      scrape.DefaultMaxErrors,
		MaxWarnings:    scrape.DefaultMaxWarnings,
		MaxPreContext:  scrape.DefaultMaxPreContext,
		MaxPostContext: scrape.DefaultMaxPostContext,
	}
}

// RunRequest configures one build invocation. A zero limit is honored as
// zero; start from NewRunRequest for the defaults.
type RunRequest struct {
	Command string
	WorkDir string
	Timeout time.Duration
	Mode    Mode
	Rules   rules.Config
	Limits
	// Heartbeat is the trace heartbeat interval while the build runs.
	Heartbeat time.Duration
	// LaunchDir is the fragment directory in launcher mode. Empty creates a
	// temporary one that is removed after the run.
	LaunchDir string
	SourceDir string
	BuildDir  string
	Encoding  string
	Progress  ProgressSink
}

// NewRunRequest returns a scrape-mode request with default limits.
func NewRunRequest(command string) *RunRequest {
	return &RunRequest{Command: command, Mode: ModeScrape, Limits: DefaultLimits()}
}

// RunResult is the outcome of a run. Build failures are reported here,
// never as an error.
type RunResult struct {
	Report      []report.Entry
	Termination Termination
	Errors      uint
	Warnings    uint
	Lines       uint64
	RuleIssues  []rules.CompileIssue
	Timings     Timings
}

// Succeeded reports a clean exit without error entries.
func (r RunResult) Succeeded() bool {
	return r.Termination.Succeeded() && r.Errors == 0
}

// Run executes the build described by req and returns its report.
// The error is reserved for invalid requests and setup failures.
func Run(ctx context.Context, req *RunRequest) (RunResult, error) {
	var result RunResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing run request")
	}
	if strings.TrimSpace(req.Command) == "" {
		return result, ErrEmptyCommand
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return result, err
	}
	if err := scrape.ValidateEncoding(req.Encoding); err != nil {
		return result, err
	}

	tracer := trace.FromContext(ctx)
	runSpan := trace.Begin(tracer, trace.ScopeRun, "run", 0).WithExtra("mode", string(mode))
	ctx = trace.WithSpan(ctx, runSpan)
	defer func() {
		runSpan.WithExtra("errors", fmt.Sprint(result.Errors)).
			WithExtra("warnings", fmt.Sprint(result.Warnings)).
			End(result.Termination.State.String())
	}()

	prepStart := time.Now()
	emitStage(req.Progress, StagePrepare, StatusWorking, nil, 0)
	rs := rules.Compile(rules.Builtin(), req.Rules, tracer)
	result.RuleIssues = rs.Issues()

	var in report.Input
	switch mode {
	case ModeLauncher:
		in, err = runLauncher(ctx, req, &result, prepStart)
	default:
		in, err = runScrape(ctx, req, rs, &result, prepStart)
	}
	if err != nil {
		return result, err
	}

	reportStart := time.Now()
	emitStage(req.Progress, StageReport, StatusWorking, nil, 0)
	result.Report = report.Build(in, report.Options{
		MaxErrors:   req.MaxErrors,
		MaxWarnings: req.MaxWarnings,
		SourceDir:   req.SourceDir,
		BuildDir:    req.BuildDir,
	})
	result.Errors, result.Warnings = report.Counts(result.Report)
	result.Timings.Set(StageReport, time.Since(reportStart))
	emitStage(req.Progress, StageReport, StatusDone, nil, result.Timings.Duration(StageReport))
	return result, nil
}

func runScrape(ctx context.Context, req *RunRequest, rs *rules.RuleSet, result *RunResult, prepStart time.Time) (report.Input, error) {
	throttle := &progressThrottle{sink: req.Progress}
	asm, err := scrape.NewAssembler(scrape.Options{
		Rules:          rs,
		MaxErrors:      req.MaxErrors,
		MaxWarnings:    req.MaxWarnings,
		MaxPreContext:  req.MaxPreContext,
		MaxPostContext: req.MaxPostContext,
		Encoding:       req.Encoding,
		OnProgress: func(p scrape.Progress) {
			throttle.observe(p.Lines, p.Errors, p.Warnings)
		},
		Tracer: trace.FromContext(ctx),
	})
	if err != nil {
		return report.Input{}, err
	}
	result.Timings.Set(StagePrepare, time.Since(prepStart))
	emitStage(req.Progress, StagePrepare, StatusDone, nil, result.Timings.Duration(StagePrepare))

	runStart := time.Now()
	emitStage(req.Progress, StageRun, StatusWorking, nil, 0)
	term := Drive(ctx, DriveRequest{Command: req.Command, WorkDir: req.WorkDir, Timeout: req.Timeout, Heartbeat: req.Heartbeat}, asm.Feed)
	asm.Finish()
	if d, ok := term.Synthetic(); ok {
		asm.AppendSynthetic(d)
	}
	result.Termination = term
	result.Lines = asm.Progress().Lines
	result.Timings.Set(StageRun, time.Since(runStart))
	finishRunStage(req.Progress, term, asm.Progress(), result.Timings.Duration(StageRun))

	return report.Input{Diagnostics: asm.Timeline().Items()}, nil
}

func runLauncher(ctx context.Context, req *RunRequest, result *RunResult, prepStart time.Time) (report.Input, error) {
	tracer := trace.FromContext(ctx)
	dir, cleanup, err := launcher.Prepare(req.LaunchDir)
	if err != nil {
		emitStage(req.Progress, StagePrepare, StatusError, err, 0)
		return report.Input{}, err
	}
	defer cleanup()
	result.Timings.Set(StagePrepare, time.Since(prepStart))
	emitStage(req.Progress, StagePrepare, StatusDone, nil, result.Timings.Duration(StagePrepare))

	// Output is not classified in launcher mode, only counted.
	runStart := time.Now()
	emitStage(req.Progress, StageRun, StatusWorking, nil, 0)
	var lines uint64
	throttle := &progressThrottle{sink: req.Progress}
	term := Drive(ctx, DriveRequest{
		Command:   req.Command,
		WorkDir:   req.WorkDir,
		Timeout:   req.Timeout,
		Env:       []string{launcher.EnvVar + "=" + dir},
		Heartbeat: req.Heartbeat,
	}, func(data []byte, _ scrape.Stream) {
		for _, b := range data {
			if b == '\n' {
				lines++
			}
		}
		throttle.observe(lines, 0, 0)
	})
	result.Termination = term
	result.Lines = lines
	result.Timings.Set(StageRun, time.Since(runStart))
	finishRunStage(req.Progress, term, scrape.Progress{Lines: lines}, result.Timings.Duration(StageRun))

	mergeStart := time.Now()
	emitStage(req.Progress, StageMerge, StatusWorking, nil, 0)
	frags, err := launcher.Merge(dir, req.MaxErrors, req.MaxWarnings, tracer)
	if err != nil {
		trace.Warn(tracer, trace.ScopeStage, "fragments.unavailable", err.Error(), map[string]string{"dir": dir})
	}
	result.Timings.Set(StageMerge, time.Since(mergeStart))
	emitStage(req.Progress, StageMerge, StatusDone, nil, result.Timings.Duration(StageMerge))

	in := report.Input{Fragments: frags}
	if d, ok := term.Synthetic(); ok {
		in.Synthetic = []diag.Diagnostic{d}
	}
	return in, nil
}

func finishRunStage(sink ProgressSink, term Termination, p scrape.Progress, elapsed time.Duration) {
	if sink == nil {
		return
	}
	evt := Event{
		Stage:    StageRun,
		Status:   StatusDone,
		Lines:    p.Lines,
		Errors:   p.Errors,
		Warnings: p.Warnings,
		Detail:   term.State.String(),
		Elapsed:  elapsed,
	}
	if !term.Succeeded() {
		evt.Status = StatusError
		evt.Err = term.Err
	}
	sink.OnEvent(evt)
}

// ScanRequest configures classification of an existing log.
type ScanRequest struct {
	Rules rules.Config
	Limits
	SourceDir string
	BuildDir  string
	Encoding  string
	Progress  ProgressSink
}

// Scan classifies the log read from r the same way Run classifies build
// output. Read errors end the input early and are traced. The termination
// is a zero exit unless ctx ends first.
func Scan(ctx context.Context, r io.Reader, req ScanRequest) (RunResult, error) {
	var result RunResult
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRun, "scan", 0)
	defer func() { span.End(fmt.Sprintf("errors=%d warnings=%d", result.Errors, result.Warnings)) }()

	start := time.Now()
	rs := rules.Compile(rules.Builtin(), req.Rules, tracer)
	result.RuleIssues = rs.Issues()
	throttle := &progressThrottle{sink: req.Progress}
	asm, err := scrape.NewAssembler(scrape.Options{
		Rules:          rs,
		MaxErrors:      req.MaxErrors,
		MaxWarnings:    req.MaxWarnings,
		MaxPreContext:  req.MaxPreContext,
		MaxPostContext: req.MaxPostContext,
		Encoding:       req.Encoding,
		OnProgress: func(p scrape.Progress) {
			throttle.observe(p.Lines, p.Errors, p.Warnings)
		},
		Tracer: tracer,
	})
	if err != nil {
		return result, err
	}
	result.Timings.Set(StagePrepare, time.Since(start))

	runStart := time.Now()
	emitStage(req.Progress, StageRun, StatusWorking, nil, 0)
	// The reader may block indefinitely (a quiet stdin), so reads happen on
	// their own goroutine and cancellation is observed between chunks.
	chunks := make(chan chunk, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- pump(r, scrape.Stdout, chunks)
		close(chunks)
	}()
feed:
	for {
		select {
		case <-ctx.Done():
			go func() {
				for range chunks {
				}
			}()
			break feed
		case c, ok := <-chunks:
			if !ok {
				if err := <-readErr; err != nil {
					trace.Warn(tracer, trace.ScopeStream, "stream.read_error", err.Error(), nil)
				}
				break feed
			}
			asm.Feed(c.data, c.origin)
		}
	}
	asm.Finish()
	result.Termination = Termination{State: StateExited, Elapsed: time.Since(runStart)}
	if ctx.Err() != nil {
		result.Termination = Termination{State: StateExpired, Code: -1, Err: ctx.Err(), Elapsed: time.Since(runStart)}
	}
	result.Lines = asm.Progress().Lines
	result.Timings.Set(StageRun, time.Since(runStart))
	finishRunStage(req.Progress, result.Termination, asm.Progress(), result.Timings.Duration(StageRun))

	reportStart := time.Now()
	result.Report = report.Build(report.Input{Diagnostics: asm.Timeline().Items()}, report.Options{
		MaxErrors:   req.MaxErrors,
		MaxWarnings: req.MaxWarnings,
		SourceDir:   req.SourceDir,
		BuildDir:    req.BuildDir,
	})
	result.Errors, result.Warnings = report.Counts(result.Report)
	result.Timings.Set(StageReport, time.Since(reportStart))
	emitStage(req.Progress, StageReport, StatusDone, nil, result.Timings.Duration(StageReport))
	return result, nil
}
