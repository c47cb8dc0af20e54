package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/aryankumar/fanout/internal/util"
)

// Format represents the output format type
type Format string

const (
	// FormatTable outputs data in a table format (kubectl-style)
	FormatTable Format = "table"
	// FormatJSON outputs data in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs data in YAML format
	FormatYAML Format = "yaml"
)

// ParseFormat maps a flag value onto a Format. The empty string means table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", util.NewValidationError("output", s, "must be one of: table, json, yaml")
	}
}

// Formatter defines the interface for output formatting
type Formatter interface {
	// Format writes rows or a single value. Table output understands *Table,
	// maps and slices of maps; JSON and YAML encode anything.
	Format(w io.Writer, data interface{}) error

	// FormatStatus writes one line per target followed by a summary
	FormatStatus(w io.Writer, rows []StatusRow) error
}

// Option is a functional option for configuring formatters
type Option func(*Options)

// Options holds configuration for formatters
type Options struct {
	// NoColor disables color output
	NoColor bool

	// NoHeaders disables table headers
	NoHeaders bool

	// Wide keeps full target names instead of shortening them
	Wide bool
}

// WithNoColor disables color output
func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

// WithNoHeaders disables table headers
func WithNoHeaders(noHeaders bool) Option {
	return func(o *Options) {
		o.NoHeaders = noHeaders
	}
}

// WithWide enables wide output
func WithWide(wide bool) Option {
	return func(o *Options) {
		o.Wide = wide
	}
}

// NewFormatter creates a new formatter based on the specified format
func NewFormatter(format Format, opts ...Option) Formatter {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		fallthrough
	default:
		return NewTableFormatter(options)
	}
}

// Table is a pre-rendered grid for table output. The first column holds
// target names and is shortened and highlighted.
type Table struct {
	Headers []string
	Rows    [][]string

	// Footer is printed after the table when set
	Footer string

	// Empty is printed instead of the table when there are no rows
	Empty string
}

// Append adds a row, formatting each cell with %v
func (t *Table) Append(cells ...interface{}) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = fmt.Sprintf("%v", c)
	}
	t.Rows = append(t.Rows, row)
}
