package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme provides color functions for different output elements
type ColorScheme struct {
	// Target colors target names
	Target func(format string, a ...interface{}) string

	// Success colors success status
	Success func(format string, a ...interface{}) string

	// Error colors error messages
	Error func(format string, a ...interface{}) string

	// Warning colors warning messages
	Warning func(format string, a ...interface{}) string

	// Header colors table headers
	Header func(format string, a ...interface{}) string

	// Duration colors duration values
	Duration func(format string, a ...interface{}) string

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a new color scheme
// Colors are automatically disabled for non-TTY outputs or when noColor is true
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	if noColor || !isTTY(w) {
		return &ColorScheme{
			Target:   fmt.Sprintf,
			Success:  fmt.Sprintf,
			Error:    fmt.Sprintf,
			Warning:  fmt.Sprintf,
			Header:   fmt.Sprintf,
			Duration: fmt.Sprintf,
			Disabled: true,
		}
	}

	return &ColorScheme{
		Target:   forced(color.FgCyan, color.Bold),
		Success:  forced(color.FgGreen),
		Error:    forced(color.FgRed, color.Bold),
		Warning:  forced(color.FgYellow),
		Header:   forced(color.FgWhite, color.Bold),
		Duration: forced(color.FgBlue),
		Disabled: false,
	}
}

// forced builds a Sprintf that colors regardless of the package-wide
// NoColor setting, which only looks at stdout
func forced(attrs ...color.Attribute) func(format string, a ...interface{}) string {
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprintf
}

// isTTY checks if the writer is a TTY
func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// StatusColor returns an appropriate color function based on error status
func (cs *ColorScheme) StatusColor(hasError bool) func(format string, a ...interface{}) string {
	if hasError {
		return cs.Error
	}
	return cs.Success
}
