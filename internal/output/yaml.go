package output

import (
	"io"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	options *Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

// Format outputs a single data item as YAML
func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(data)
}

// FormatStatus outputs per-target results as a YAML sequence
func (f *YAMLFormatter) FormatStatus(w io.Writer, rows []StatusRow) error {
	views := lo.Map(rows, func(r StatusRow, _ int) statusView {
		return r.view()
	})
	return f.Format(w, views)
}
