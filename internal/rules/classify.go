package rules

import (
	"regexp"

	"buildscan/internal/diag"
)

// Class is the outcome of classifying one line.
type Class uint8

const (
	ClassRegular Class = iota
	ClassWarning
	ClassError
)

func (c Class) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassWarning:
		return "warning"
	default:
		return "regular"
	}
}

// Kind maps a non-regular class to its diagnostic kind.
func (c Class) Kind() (diag.Kind, bool) {
	switch c {
	case ClassError:
		return diag.KindError, true
	case ClassWarning:
		return diag.KindWarning, true
	}
	return 0, false
}

// Classify decides whether line is an error, a warning or regular output.
//
// Each kind is evaluated independently and only while its quota is not
// exhausted: the first matching pattern raises the flag, the first matching
// exception clears it. An error flag always wins over a warning flag.
func Classify(line string, q diag.QuotaState, rs *RuleSet) Class {
	if rs == nil {
		return ClassRegular
	}
	isError := !q.Error.Exhausted && matchTwoPhase(line, rs.errorMatches, rs.errorExceptions)
	isWarning := !q.Warning.Exhausted && matchTwoPhase(line, rs.warningMatches, rs.warningExceptions)

	switch {
	case isError:
		return ClassError
	case isWarning:
		return ClassWarning
	default:
		return ClassRegular
	}
}

func matchTwoPhase(line string, matches, exceptions []*regexp.Regexp) bool {
	if !anyMatch(line, matches) {
		return false
	}
	return !anyMatch(line, exceptions)
}

func anyMatch(line string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
