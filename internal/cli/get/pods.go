package get

import (
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/spf13/cobra"
)

func newGetPodsCmd() *cobra.Command {
	var (
		ns       namespaceFlags
		selector string
	)

	cmd := &cobra.Command{
		Use:   "pods",
		Short: "Get pods across clusters",
		Long: `Get pods from all selected Kubernetes clusters.

Supports filtering by namespace and label selectors. Results are displayed
with cluster name, namespace, pod name, ready status, phase, restart count, and age.`,
		Aliases: []string{"pod", "po"},
		Example: `  # Get all pods in the default namespace
  fanout get pods

  # Get all pods in kube-system namespace
  fanout get pods -n kube-system

  # Get all pods across all namespaces
  fanout get pods -A

  # Get pods with label selector
  fanout get pods -l app=nginx

  # Get pods in JSON format
  fanout get pods -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, lister[cluster.PodInfo]{
				kind:  "pods",
				fetch: cluster.PodLister(ns.resolve(), selector),
				key: func(p cluster.PodInfo) (string, string, string) {
					return p.Cluster, p.Namespace, p.Name
				},
				table: podTable,
			})
		},
	}

	ns.register(cmd)
	cmd.Flags().StringVarP(&selector, "selector", "l", "", "Label selector to filter pods")

	return cmd
}

func podTable(pods []cluster.PodInfo, wide bool) *output.Table {
	t := &output.Table{
		Headers: []string{"CLUSTER", "NAMESPACE", "NAME", "READY", "STATUS", "RESTARTS", "AGE"},
		Empty:   "No pods found",
	}
	if wide {
		t.Headers = append(t.Headers, "NODE")
	}

	for _, p := range pods {
		if wide {
			t.Append(p.Cluster, p.Namespace, p.Name, p.Ready, p.Status, p.Restarts, p.Age, p.Node)
			continue
		}
		t.Append(p.Cluster, p.Namespace, p.Name, p.Ready, p.Status, p.Restarts, p.Age)
	}

	t.Footer = footer(pods, "pods", func(p cluster.PodInfo) string { return p.Cluster })
	return t
}
