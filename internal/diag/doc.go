// Package diag defines the diagnostic model shared by the collection and
// reporting phases.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Kind – Error or Warning, defined in kind.go.
//   - Seq – the running number of the build-log line that produced it.
//   - Text – the classified line, verbatim.
//   - SourceFile / SourceLine – optional location extracted from Text.
//   - PreContext / PostContext – bounded windows of ordinary lines around it.
//
// QuotaState tracks one sticky per-kind cap. Timeline is the append-only,
// chronologically ordered collection of diagnostics produced by one run.
//
// # Scope
//
// Package diag does not classify, format or perform IO. Classification lives
// in internal/rules and internal/scrape, rendering in internal/diagfmt.
package diag
