// Package trace provides the structured event log of buildscan.
//
// Every run records its stages (spawn, collect, merge, report), stream-level
// events and dropped rules through a Tracer carried in the context.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	buildscan run --trace=- --trace-level=detail -- make -j8
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer dumped when a build fails
//   - MultiTracer: combines multiple tracers
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelWarn: only warning events (dropped rules, unreadable fragments)
//   - LevelPhase: run and stage boundaries
//   - LevelDetail: stream-level events
//   - LevelDebug: everything including per-line classification
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeStage, "collect", parentID)
//	defer span.End("")
package trace
