// Package output renders command results for the fanout CLI.
//
// Three formats are supported: kubectl-style tables, JSON and YAML. Every
// formatter implements two methods:
//
//   - Format writes listing rows. Table output expects a *Table whose first
//     column names the target; JSON and YAML encode the rows directly.
//   - FormatStatus writes one StatusRow per target (success or failure,
//     attempts, duration) and, for tables, a summary line.
//
// Basic usage:
//
//	formatter := output.NewFormatter(output.FormatTable, output.WithNoColor(true))
//	formatter.FormatStatus(os.Stdout, rows)
//
// Colors are enabled only when writing to a terminal and can be disabled
// with WithNoColor. Target names such as EKS ARNs or GKE context names are
// shortened in tables unless WithWide is set.
package output
