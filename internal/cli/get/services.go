package get

import (
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/spf13/cobra"
)

func newGetServicesCmd() *cobra.Command {
	var ns namespaceFlags

	cmd := &cobra.Command{
		Use:   "services",
		Short: "Get services across clusters",
		Long: `Get services from all selected Kubernetes clusters.

Displays service name, type, cluster IP, external IP, ports, and age
for every cluster.`,
		Aliases: []string{"service", "svc"},
		Example: `  # Get services in the default namespace
  fanout get services

  # Get services in kube-system from two clusters
  fanout get svc -n kube-system --clusters prod-east,prod-west`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, lister[cluster.ServiceInfo]{
				kind:  "services",
				fetch: cluster.ServiceLister(ns.resolve()),
				key: func(s cluster.ServiceInfo) (string, string, string) {
					return s.Cluster, s.Namespace, s.Name
				},
				table: serviceTable,
			})
		},
	}

	ns.register(cmd)

	return cmd
}

func serviceTable(services []cluster.ServiceInfo, _ bool) *output.Table {
	t := &output.Table{
		Headers: []string{"CLUSTER", "NAMESPACE", "NAME", "TYPE", "CLUSTER-IP", "EXTERNAL-IP", "PORT(S)", "AGE"},
		Empty:   "No services found",
	}
	for _, s := range services {
		t.Append(s.Cluster, s.Namespace, s.Name, s.Type, s.ClusterIP, s.ExternalIP, s.Ports, s.Age)
	}

	t.Footer = footer(services, "services", func(s cluster.ServiceInfo) string { return s.Cluster })
	return t
}
