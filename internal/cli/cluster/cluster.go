package cluster

import (
	"github.com/spf13/cobra"
)

// NewClusterCmd creates the cluster command
func NewClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Inspect the clusters fanout can reach",
		Long: `Inspect the Kubernetes clusters in your kubeconfig.

This command provides subcommands for listing the available contexts and
checking that their API servers answer.`,
	}

	// Add subcommands
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newHealthCmd())

	return cmd
}
