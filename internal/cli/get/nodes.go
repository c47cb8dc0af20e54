package get

import (
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/spf13/cobra"
)

func newGetNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Short:   "Get nodes across clusters",
		Long:    `Get nodes from all selected Kubernetes clusters with their readiness, roles, age and kubelet version.`,
		Aliases: []string{"node", "no"},
		Example: `  # Get all nodes
  fanout get nodes

  # Get nodes from production clusters only
  fanout get nodes --clusters prod-east,prod-west`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, lister[cluster.NodeInfo]{
				kind:  "nodes",
				fetch: cluster.ListNodes,
				key: func(n cluster.NodeInfo) (string, string, string) {
					return n.Cluster, "", n.Name
				},
				table: nodeTable,
			})
		},
	}

	return cmd
}

func nodeTable(nodes []cluster.NodeInfo, _ bool) *output.Table {
	t := &output.Table{
		Headers: []string{"CLUSTER", "NAME", "STATUS", "ROLES", "AGE", "VERSION"},
		Empty:   "No nodes found",
	}
	for _, n := range nodes {
		t.Append(n.Cluster, n.Name, n.Status, n.Roles, n.Age, n.Version)
	}

	t.Footer = footer(nodes, "nodes", func(n cluster.NodeInfo) string { return n.Cluster })
	return t
}
