package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mattn/go-shellwords"
	"golang.org/x/sync/errgroup"

	"buildscan/internal/diag"
	"buildscan/internal/scrape"
	"buildscan/internal/trace"
)

// State is the terminal state of the build process.
type State uint8

const (
	// StateExited means the process exited on its own; see Termination.Code.
	StateExited State = iota
	// StateException means the process was terminated by a signal.
	StateException
	// StateExpired means the timeout elapsed or the run was cancelled.
	StateExpired
	// StateLaunchFailed means the process could not be started.
	StateLaunchFailed
)

func (s State) String() string {
	switch s {
	case StateExited:
		return "exited"
	case StateException:
		return "exception"
	case StateExpired:
		return "expired"
	case StateLaunchFailed:
		return "launch-failed"
	default:
		return "unknown"
	}
}

// Termination describes how the build process ended.
type Termination struct {
	State State
	// Code is the exit code for StateExited, -1 otherwise.
	Code int
	// Signal is the raw signal name for StateException.
	Signal  string
	Err     error
	Elapsed time.Duration
	// Program is argv[0] of the build command.
	Program string
}

// Succeeded reports a normal exit with code 0.
func (t Termination) Succeeded() bool {
	return t.State == StateExited && t.Code == 0
}

// NonZeroExitPrefix starts the warning synthesized for a failing exit code.
const NonZeroExitPrefix = "*** WARNING non-zero return value from: "

// Synthetic returns the diagnostic the termination contributes to the report.
// Only a nonzero exit and a launch failure produce one.
func (t Termination) Synthetic() (diag.Diagnostic, bool) {
	switch {
	case t.State == StateExited && t.Code != 0:
		return diag.Diagnostic{Kind: diag.KindWarning, Text: NonZeroExitPrefix + t.Program, Synthetic: true}, true
	case t.State == StateLaunchFailed && t.Err != nil:
		return diag.Diagnostic{Kind: diag.KindError, Text: t.Err.Error(), Synthetic: true}, true
	}
	return diag.Diagnostic{}, false
}

// DriveRequest configures one build process.
type DriveRequest struct {
	Command string
	WorkDir string
	// Timeout of zero disables the deadline.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
	// Heartbeat emits trace heartbeats carrying the bytes read so far.
	Heartbeat time.Duration
}

// pipeGrace bounds how long output pipes stay open after the build process
// exits or is killed, for background descendants still holding them.
const pipeGrace = 2 * time.Second

const readBufferSize = 32 * 1024

type chunk struct {
	data   []byte
	origin scrape.Stream
}

// SplitCommand splits a command line into argv using shell quoting rules.
func SplitCommand(command string) ([]string, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return argv, nil
}

// Drive runs the build command and passes every output chunk to sink in
// arrival order. Chunks of one stream keep their order; sink is always
// called from the calling goroutine.
func Drive(ctx context.Context, req DriveRequest, sink func([]byte, scrape.Stream)) Termination {
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeStage, "drive", trace.CurrentSpan(ctx))
	start := time.Now()

	term := drive(ctx, req, sink, tracer)
	term.Elapsed = time.Since(start)

	switch term.State {
	case StateException:
		trace.Warn(tracer, trace.ScopeStage, "process.signaled", term.Signal, map[string]string{"program": term.Program})
	case StateExpired:
		trace.Warn(tracer, trace.ScopeStage, "process.expired", term.Elapsed.String(), map[string]string{"program": term.Program})
	case StateLaunchFailed:
		trace.Warn(tracer, trace.ScopeStage, "process.launch_failed", fmt.Sprint(term.Err), map[string]string{"program": term.Program})
	}
	span.WithExtra("state", term.State.String()).End(fmt.Sprintf("code=%d", term.Code))
	return term
}

func drive(ctx context.Context, req DriveRequest, sink func([]byte, scrape.Stream), tracer trace.Tracer) Termination {
	argv, err := SplitCommand(req.Command)
	if err != nil {
		return Termination{State: StateLaunchFailed, Code: -1, Err: err}
	}
	term := Termination{Code: -1, Program: argv[0]}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// #nosec G204 -- running the user's build command is the purpose
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = req.WorkDir
	cmd.Env = append(os.Environ(), req.Env...)
	cmd.WaitDelay = pipeGrace
	setProcessGroup(cmd)

	stdout, stderr, err := attachPipes(cmd)
	if err != nil {
		term.State, term.Err = StateLaunchFailed, err
		return term
	}
	defer stdout.Close()
	defer stderr.Close()
	if err := cmd.Start(); err != nil {
		closeWriteEnds(cmd)
		term.State, term.Err = StateLaunchFailed, err
		return term
	}
	closeWriteEnds(cmd)
	trace.Point(tracer, trace.ScopeStage, "process.started", argv[0], map[string]string{"pid": strconv.Itoa(cmd.Process.Pid)})

	// Wait runs alongside the readers: a background job that inherited the
	// pipes must not hold the run open past pipeGrace.
	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	chunks := make(chan chunk, 64)
	var g errgroup.Group
	g.Go(func() error { return pump(stdout, scrape.Stdout, chunks) })
	g.Go(func() error { return pump(stderr, scrape.Stderr, chunks) })
	readErr := make(chan error, 1)
	go func() {
		readErr <- g.Wait()
		close(chunks)
	}()

	var outBytes, errBytes atomic.Uint64
	pid := strconv.Itoa(cmd.Process.Pid)
	heartbeat := trace.StartHeartbeat(tracer, req.Heartbeat, func() map[string]string {
		return map[string]string{
			"pid":          pid,
			"stdout_bytes": strconv.FormatUint(outBytes.Load(), 10),
			"stderr_bytes": strconv.FormatUint(errBytes.Load(), 10),
		}
	})

	stopGuard := guardPipes(ctx, exited, stdout, stderr)
	for c := range chunks {
		if c.origin == scrape.Stderr {
			errBytes.Add(uint64(len(c.data)))
		} else {
			outBytes.Add(uint64(len(c.data)))
		}
		sink(c.data, c.origin)
	}
	stopGuard()
	heartbeat.Stop()
	if err := <-readErr; err != nil {
		trace.Warn(tracer, trace.ScopeStream, "stream.read_error", err.Error(), nil)
	}

	<-exited
	ps := cmd.ProcessState
	if ctx.Err() != nil && (ps == nil || !ps.Exited()) {
		term.State, term.Err = StateExpired, ctx.Err()
		return term
	}
	if ps == nil {
		term.State, term.Err = StateException, waitErr
		return term
	}
	if sig, ok := signalName(ps); ok {
		term.State, term.Signal = StateException, sig
		return term
	}
	term.State = StateExited
	term.Code = ps.ExitCode()
	return term
}

// pump copies r into out until EOF or a read error. A read error ends this
// stream only.
func pump(r io.Reader, origin scrape.Stream, out chan<- chunk) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- chunk{data: data, origin: origin}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("%s: %w", origin, err)
		}
	}
}

// guardPipes closes the read ends pipeGrace after ctx is done or the
// process has exited, so readers cannot outlive the run. The returned func
// stops the guard.
func guardPipes(ctx context.Context, exited <-chan struct{}, pipes ...io.Closer) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		case <-exited:
		}
		timer := time.NewTimer(pipeGrace)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			for _, p := range pipes {
				_ = p.Close()
			}
		}
	}()
	return func() { close(done) }
}

// attachPipes wires fresh pipes to the command's stdout and stderr and
// returns the read ends. The write ends are handed to the child as files, so
// Wait never touches the read ends.
func attachPipes(cmd *exec.Cmd) (stdout, stderr *os.File, err error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, nil, err
	}
	cmd.Stdout, cmd.Stderr = outW, errW
	return outR, errR, nil
}

// closeWriteEnds drops the parent's copies of the write ends so the readers
// see EOF once every process holding them is gone.
func closeWriteEnds(cmd *exec.Cmd) {
	for _, w := range []io.Writer{cmd.Stdout, cmd.Stderr} {
		if f, ok := w.(*os.File); ok {
			_ = f.Close()
		}
	}
}
