package output

import (
	"encoding/json"
	"io"

	"github.com/samber/lo"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	options *Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

// Format outputs a single data item as JSON
func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FormatStatus outputs per-target results as a JSON array
func (f *JSONFormatter) FormatStatus(w io.Writer, rows []StatusRow) error {
	views := lo.Map(rows, func(r StatusRow, _ int) statusView {
		return r.view()
	})
	return f.Format(w, views)
}
