package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/spf13/cobra"
)

const (
	maxServerWidth = 50
	maxUserWidth   = 30
)

// newListCmd creates the cluster list command
func newListCmd() *cobra.Command {
	var showLabels bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all available Kubernetes clusters",
		Long: `List all Kubernetes clusters from your kubeconfig file(s).

This command displays all available contexts, showing the current context,
cluster names, servers, namespaces, and users. Aliases and labels from the
fanout config file are merged in. It supports multiple kubeconfig sources
including the KUBECONFIG environment variable.`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, showLabels)
		},
	}

	cmd.Flags().BoolVar(&showLabels, "show-labels", false, "show cluster labels from fanout config")

	return cmd
}

func runList(cmd *cobra.Command, showLabels bool) error {
	rt, err := cmdutil.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	rt.Logger.Debug("using kubeconfig paths", "paths", strings.Join(rt.Loader.Paths(), ", "))

	targets, err := rt.Loader.Targets()
	if err != nil {
		return fmt.Errorf("failed to load clusters: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No clusters found in kubeconfig")
		return nil
	}

	targets = rt.Settings.MergeTargetInfo(targets)

	// Current context always comes first
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Current != targets[j].Current {
			return targets[i].Current
		}
		return targets[i].Context < targets[j].Context
	})

	formatter, err := rt.Formatter()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if rt.Format() != output.FormatTable {
		return formatter.Format(w, targets)
	}
	return formatter.Format(w, targetTable(targets, showLabels, rt.Wide))
}

func targetTable(targets []config.TargetInfo, showLabels, wide bool) *output.Table {
	t := &output.Table{
		Headers: []string{"CONTEXT", "CURRENT", "CLUSTER", "SERVER", "NAMESPACE", "USER"},
	}
	if showLabels {
		t.Headers = append(t.Headers, "LABELS")
	}

	for _, target := range targets {
		current := ""
		if target.Current {
			current = "*"
		}

		// Cluster name (with alias if available)
		name := target.Name
		if target.Alias != "" && target.Alias != target.Context {
			name = fmt.Sprintf("%s (%s)", name, target.Alias)
		}

		server, user := target.Server, target.User
		if !wide {
			server = truncate(server, maxServerWidth)
			user = truncate(user, maxUserWidth)
		}

		row := []interface{}{target.Context, current, name, server, target.Namespace, user}
		if showLabels {
			row = append(row, formatLabels(target.Labels))
		}
		t.Append(row...)
	}

	t.Footer = fmt.Sprintf("Total: %d clusters", len(targets))
	return t
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

// formatLabels renders labels as sorted key=value pairs
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "<none>"
	}

	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
