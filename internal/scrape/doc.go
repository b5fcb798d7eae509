// Package scrape turns interleaved stdout/stderr byte chunks into a
// diagnostic timeline.
//
// Chunks are split into lines per origin stream, every line is classified
// against the run's rule set, and classified lines become diagnostics with a
// bounded window of surrounding ordinary lines. The Assembler is single
// threaded: the caller owns the goroutine that feeds it.
package scrape
