// Package rules holds the compiled pattern tables used to classify build
// output and the pure Classify function that applies them.
//
// A RuleSet is built once per run from the built-in tables followed by the
// user-supplied patterns, so user rules only add coverage. Exceptions still
// override matches regardless of where either came from. Patterns that fail to
// compile are dropped and reported, never fatal.
package rules
