package get

import (
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/spf13/cobra"
)

func newGetNamespacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespaces",
		Short:   "Get namespaces across clusters",
		Long:    `Get namespaces from all selected Kubernetes clusters with their phase and age.`,
		Aliases: []string{"namespace", "ns"},
		Example: `  # Get all namespaces
  fanout get namespaces

  # Get namespaces as YAML
  fanout get ns -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, lister[cluster.NamespaceInfo]{
				kind:  "namespaces",
				fetch: cluster.ListNamespaces,
				key: func(n cluster.NamespaceInfo) (string, string, string) {
					return n.Cluster, "", n.Name
				},
				table: namespaceTable,
			})
		},
	}

	return cmd
}

func namespaceTable(namespaces []cluster.NamespaceInfo, _ bool) *output.Table {
	t := &output.Table{
		Headers: []string{"CLUSTER", "NAME", "STATUS", "AGE"},
		Empty:   "No namespaces found",
	}
	for _, n := range namespaces {
		t.Append(n.Cluster, n.Name, n.Status, n.Age)
	}

	t.Footer = footer(namespaces, "namespaces", func(n cluster.NamespaceInfo) string { return n.Cluster })
	return t
}
