package get

import (
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/spf13/cobra"
)

func newGetDeploymentsCmd() *cobra.Command {
	var ns namespaceFlags

	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "Get deployments across clusters",
		Long: `Get deployments from all selected Kubernetes clusters.

Results show ready replicas against the desired count, up-to-date and
available replicas, and age.`,
		Aliases: []string{"deployment", "deploy"},
		Example: `  # Get deployments in the default namespace
  fanout get deployments

  # Get deployments across all namespaces
  fanout get deployments -A`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, lister[cluster.DeploymentInfo]{
				kind:  "deployments",
				fetch: cluster.DeploymentLister(ns.resolve()),
				key: func(d cluster.DeploymentInfo) (string, string, string) {
					return d.Cluster, d.Namespace, d.Name
				},
				table: deploymentTable,
			})
		},
	}

	ns.register(cmd)

	return cmd
}

func deploymentTable(deployments []cluster.DeploymentInfo, _ bool) *output.Table {
	t := &output.Table{
		Headers: []string{"CLUSTER", "NAMESPACE", "NAME", "READY", "UP-TO-DATE", "AVAILABLE", "AGE"},
		Empty:   "No deployments found",
	}
	for _, d := range deployments {
		t.Append(d.Cluster, d.Namespace, d.Name, d.Ready, d.UpToDate, d.Available, d.Age)
	}

	t.Footer = footer(deployments, "deployments", func(d cluster.DeploymentInfo) string { return d.Cluster })
	return t
}
