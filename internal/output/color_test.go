package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestNewColorScheme(t *testing.T) {
	tests := []struct {
		name    string
		noColor bool
	}{
		{name: "colors disabled with noColor flag", noColor: true},
		{name: "colors disabled for non-TTY", noColor: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewColorScheme(&bytes.Buffer{}, tt.noColor)

			if !cs.Disabled {
				t.Error("expected colors to be disabled for a buffer")
			}
			for name, fn := range map[string]func(string, ...interface{}) string{
				"Target":   cs.Target,
				"Success":  cs.Success,
				"Error":    cs.Error,
				"Warning":  cs.Warning,
				"Header":   cs.Header,
				"Duration": cs.Duration,
			} {
				if got := fn("%s-%d", "x", 1); got != "x-1" {
					t.Errorf("%s: got %q, want plain %q", name, got, "x-1")
				}
			}
		})
	}
}

func TestForced(t *testing.T) {
	got := forced(color.FgRed)("%s", "boom")

	if !strings.Contains(got, "boom") || !strings.Contains(got, "\x1b[") {
		t.Errorf("expected ANSI-wrapped text, got %q", got)
	}
}

func TestColorScheme_StatusColor(t *testing.T) {
	cs := NewColorScheme(&bytes.Buffer{}, true)

	if got := cs.StatusColor(false)("OK"); got != "OK" {
		t.Errorf("got %q, want OK", got)
	}
	if got := cs.StatusColor(true)("FAILED"); got != "FAILED" {
		t.Errorf("got %q, want FAILED", got)
	}
}

func TestIsTTY(t *testing.T) {
	if isTTY(&bytes.Buffer{}) {
		t.Error("isTTY(bytes.Buffer) = true, want false")
	}

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if isTTY(f) {
		t.Error("isTTY(regular file) = true, want false")
	}
}
