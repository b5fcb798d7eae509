package rules

import (
	"fmt"
	"regexp"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"buildscan/internal/trace"
)

// Table names a rule table.
type Table string

const (
	TableErrorMatch       Table = "error_match"
	TableErrorException   Table = "error_exception"
	TableWarningMatch     Table = "warning_match"
	TableWarningException Table = "warning_exception"
	TableFileLine         Table = "file_line"
)

// FileLineSpec is an uncompiled location-extraction rule.
// Group indexes are 1-based capture groups.
type FileLineSpec struct {
	Pattern   string `toml:"pattern" yaml:"pattern"`
	FileGroup int    `toml:"file_group" yaml:"file_group"`
	LineGroup int    `toml:"line_group" yaml:"line_group"`
}

// Config carries the user-supplied patterns appended after the built-ins.
type Config struct {
	ErrorMatches      []string
	ErrorExceptions   []string
	WarningMatches    []string
	WarningExceptions []string
	FileLine          []FileLineSpec
}

// CompileIssue records one dropped pattern.
type CompileIssue struct {
	Table   Table
	Pattern string
	Err     error
}

func (i CompileIssue) Error() string {
	return fmt.Sprintf("%s: %q: %v", i.Table, i.Pattern, i.Err)
}

// FileLineRule is a compiled location-extraction rule.
type FileLineRule struct {
	Pattern   *regexp.Regexp
	FileGroup int
	LineGroup int
}

// Location is the result of source-location resolution.
type Location struct {
	File string
	// Line is 0 when the line capture was missing or not an integer.
	Line int
}

const locateCacheSize = 256

// RuleSet is the compiled, read-only rule tables of one run.
type RuleSet struct {
	errorMatches      []*regexp.Regexp
	errorExceptions   []*regexp.Regexp
	warningMatches    []*regexp.Regexp
	warningExceptions []*regexp.Regexp
	fileLine          []FileLineRule
	issues            []CompileIssue
	located           *lru.Cache[string, Location]
}

// Compile builds a RuleSet from the built-in tables followed by cfg.
// Patterns that fail to compile are dropped, logged as warnings on tr and
// listed in Issues.
func Compile(builtins Builtins, cfg Config, tr trace.Tracer) *RuleSet {
	if tr == nil {
		tr = trace.Nop
	}
	rs := &RuleSet{}
	rs.errorMatches = rs.compileTable(tr, TableErrorMatch, builtins.ErrorMatches, cfg.ErrorMatches)
	rs.errorExceptions = rs.compileTable(tr, TableErrorException, builtins.ErrorExceptions, cfg.ErrorExceptions)
	rs.warningMatches = rs.compileTable(tr, TableWarningMatch, builtins.WarningMatches, cfg.WarningMatches)
	rs.warningExceptions = rs.compileTable(tr, TableWarningException, builtins.WarningExceptions, cfg.WarningExceptions)

	specs := make([]FileLineSpec, 0, len(builtins.FileLine)+len(cfg.FileLine))
	specs = append(specs, builtins.FileLine...)
	specs = append(specs, cfg.FileLine...)
	for _, spec := range specs {
		re, err := regexp.Compile(spec.Pattern)
		if err == nil && (spec.FileGroup < 1 || spec.FileGroup > re.NumSubexp() ||
			spec.LineGroup < 1 || spec.LineGroup > re.NumSubexp()) {
			err = fmt.Errorf("capture groups %d/%d out of range (pattern has %d)", spec.FileGroup, spec.LineGroup, re.NumSubexp())
		}
		if err != nil {
			rs.drop(tr, TableFileLine, spec.Pattern, err)
			continue
		}
		rs.fileLine = append(rs.fileLine, FileLineRule{Pattern: re, FileGroup: spec.FileGroup, LineGroup: spec.LineGroup})
	}

	// Size is a positive constant, New cannot fail.
	rs.located, _ = lru.New[string, Location](locateCacheSize)
	return rs
}

// Default compiles the built-in tables only.
func Default() *RuleSet {
	return Compile(Builtin(), Config{}, trace.Nop)
}

func (rs *RuleSet) compileTable(tr trace.Tracer, table Table, tables ...[]string) []*regexp.Regexp {
	n := 0
	for _, t := range tables {
		n += len(t)
	}
	out := make([]*regexp.Regexp, 0, n)
	for _, t := range tables {
		for _, pattern := range t {
			re, err := regexp.Compile(pattern)
			if err != nil {
				rs.drop(tr, table, pattern, err)
				continue
			}
			out = append(out, re)
		}
	}
	return out
}

func (rs *RuleSet) drop(tr trace.Tracer, table Table, pattern string, err error) {
	rs.issues = append(rs.issues, CompileIssue{Table: table, Pattern: pattern, Err: err})
	trace.Warn(tr, trace.ScopeRun, "rule.dropped", err.Error(), map[string]string{
		"table":   string(table),
		"pattern": pattern,
	})
}

// Issues returns the patterns dropped during Compile.
func (rs *RuleSet) Issues() []CompileIssue {
	return rs.issues
}

// Locate resolves a source file and line from a diagnostic text.
// The first file/line rule that matches wins; ok is false when none matched.
func (rs *RuleSet) Locate(text string) (Location, bool) {
	if rs.located != nil {
		if loc, ok := rs.located.Get(text); ok {
			return loc, loc.File != ""
		}
	}
	var loc Location
	for _, rule := range rs.fileLine {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		loc.File = m[rule.FileGroup]
		if n, err := strconv.Atoi(m[rule.LineGroup]); err == nil {
			loc.Line = n
		}
		break
	}
	if rs.located != nil {
		rs.located.Add(text, loc)
	}
	return loc, loc.File != ""
}

// Patterns returns the source text of every compiled pattern in table, in priority order.
func (rs *RuleSet) Patterns(table Table) []string {
	var res []*regexp.Regexp
	switch table {
	case TableErrorMatch:
		res = rs.errorMatches
	case TableErrorException:
		res = rs.errorExceptions
	case TableWarningMatch:
		res = rs.warningMatches
	case TableWarningException:
		res = rs.warningExceptions
	case TableFileLine:
		out := make([]string, len(rs.fileLine))
		for i, r := range rs.fileLine {
			out[i] = r.Pattern.String()
		}
		return out
	}
	out := make([]string, len(res))
	for i, re := range res {
		out[i] = re.String()
	}
	return out
}

// Tables lists every table in display order.
func Tables() []Table {
	return []Table{TableErrorMatch, TableErrorException, TableWarningMatch, TableWarningException, TableFileLine}
}
