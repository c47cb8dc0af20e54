package get

import (
	"github.com/spf13/cobra"
)

// NewGetCmd creates the get parent command
// This command aggregates all get subcommands (pods, nodes, deployments, services, namespaces)
func NewGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get resources across multiple clusters",
		Long: `Get Kubernetes resources across all selected clusters.

Every cluster is queried concurrently under the global --parallel limit.
Throttled or unavailable API servers are retried; clusters that still fail
are reported on stderr and skipped, or fail the command with --strict.`,
		Example: `  # Get all pods across all clusters
  fanout get pods

  # Get pods in a specific namespace
  fanout get pods -n kube-system

  # Get pods with label selector
  fanout get pods -l app=nginx

  # Get deployments in JSON format
  fanout get deployments -o json

  # Get nodes from specific clusters
  fanout get nodes --clusters prod-east,prod-west

  # Get namespaces from every cluster labelled env=prod in ~/.fanout.yaml
  fanout get namespaces --cluster-selector env=prod`,
	}

	// Register all subcommands
	cmd.AddCommand(newGetPodsCmd())
	cmd.AddCommand(newGetNodesCmd())
	cmd.AddCommand(newGetDeploymentsCmd())
	cmd.AddCommand(newGetServicesCmd())
	cmd.AddCommand(newGetNamespacesCmd())

	return cmd
}
