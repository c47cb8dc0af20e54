package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/util"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter formats output as a table (kubectl-style)
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case *Table:
		return f.formatTable(w, v)
	case Table:
		return f.formatTable(w, &v)
	case map[string]interface{}:
		return f.formatMap(f.createTable(w), v)
	case []map[string]interface{}:
		return f.formatMapSlice(f.createTable(w), v)
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// FormatStatus outputs per-target results as a table followed by a summary line
func (f *TableFormatter) FormatStatus(w io.Writer, rows []StatusRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No targets")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	if !f.options.NoHeaders {
		table.SetHeader(f.headers(colors, []string{"TARGET", "STATUS", "ATTEMPTS", "DURATION", "DETAIL"}))
	}

	for _, row := range rows {
		status := colors.StatusColor(!row.OK())(row.status())

		detail := row.Detail
		if !row.OK() {
			detail = colors.Error("%s", util.FriendlyError(row.Err))
			if f.options.Wide {
				detail = colors.Error("%s", row.Err.Error())
			}
		}

		table.Append([]string{
			colors.Target("%s", f.targetName(row.Target)),
			status,
			fmt.Sprintf("%d", row.Attempts),
			colors.Duration("%s", row.Duration.Round(time.Millisecond)),
			detail,
		})
	}

	table.Render()
	f.printSummary(w, SummarizeStatus(rows), colors)

	return nil
}

// formatTable renders a pre-built grid, highlighting the target column
func (f *TableFormatter) formatTable(w io.Writer, t *Table) error {
	if len(t.Rows) == 0 {
		if t.Empty != "" {
			fmt.Fprintln(w, t.Empty)
		}
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	if !f.options.NoHeaders && len(t.Headers) > 0 {
		table.SetHeader(f.headers(colors, t.Headers))
	}

	for _, row := range t.Rows {
		cells := make([]string, len(row))
		copy(cells, row)
		if len(cells) > 0 {
			cells[0] = colors.Target("%s", f.targetName(cells[0]))
		}
		table.Append(cells)
	}

	table.Render()

	if t.Footer != "" {
		fmt.Fprintf(w, "\n%s\n", t.Footer)
	}
	return nil
}

// formatMap formats a map as a two-column table (key-value pairs)
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table, columns sorted by key
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	keys := make([]string, 0, len(data[0]))
	for k := range data[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if !f.options.NoHeaders {
		headers := make([]string, len(keys))
		for i, k := range keys {
			headers[i] = strings.ToUpper(k)
		}
		table.SetHeader(headers)
	}

	for _, item := range data {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = fmt.Sprintf("%v", item[k])
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

func (f *TableFormatter) headers(colors *ColorScheme, headers []string) []string {
	if colors.Disabled {
		return headers
	}
	colored := make([]string, len(headers))
	for i, h := range headers {
		colored[i] = colors.Header("%s", h)
	}
	return colored
}

func (f *TableFormatter) targetName(name string) string {
	if f.options.Wide {
		return name
	}
	return util.ShortTargetName(name)
}

// createTable creates a new table with kubectl-style configuration
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	// headers are upper case already; auto formatting would mangle color codes
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t") // Tab-separated like kubectl
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints a summary of the results
func (f *TableFormatter) printSummary(w io.Writer, summary executor.Summary, colors *ColorScheme) {
	successText := colors.Success("%d successful", summary.Successful)

	failedText := fmt.Sprintf("%d failed", summary.Failed)
	if summary.Failed > 0 {
		failedText = colors.Error("%s", failedText)
	}

	parts := []string{successText, failedText}
	if summary.Retried > 0 {
		parts = append(parts, colors.Warning("%d retried", summary.Retried))
	}
	parts = append(parts, colors.Duration("avg=%s", summary.AvgDuration.Round(time.Millisecond)))

	fmt.Fprintf(w, "\nSummary: %s\n", strings.Join(parts, ", "))
}
