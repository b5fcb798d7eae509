package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestCurrent(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	tests := []struct {
		in   string
		want string
	}{
		{"1.2.3", "1.2.3"},
		{"  0.1.0-dev ", "0.1.0-dev"},
		{"", "dev"},
	}
	for _, tt := range tests {
		Version = tt.in
		if got := Current(); got != tt.want {
			t.Errorf("Current() with Version=%q = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColoredPlainWhenDisabled(t *testing.T) {
	orig, origNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = orig, origNoColor }()
	color.NoColor = true

	for _, v := range []string{"1.2.3", "0.1.0-dev", "1.2.3-rc.1+build.123", "nightly"} {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
}
