package diag

import "fmt"

// Kind classifies a diagnostic.
type Kind uint8

const (
	// KindError is for error diagnostics.
	KindError Kind = iota + 1
	// KindWarning is for warning diagnostics.
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	}
	return "unknown"
}

// ParseKind converts "error" or "warning" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "error", "Error", "ERROR":
		return KindError, nil
	case "warning", "Warning", "WARNING":
		return KindWarning, nil
	default:
		return 0, fmt.Errorf("unknown diagnostic kind %q (expected error|warning)", s)
	}
}
