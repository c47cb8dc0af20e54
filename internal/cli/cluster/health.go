package cluster

import (
	"fmt"

	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	kube "github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// newHealthCmd creates the cluster health command
func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that every selected cluster's API server answers",
		Long: `Ask every selected cluster for its server version, concurrently.

Throttled or unavailable API servers are retried with backoff before a
cluster is reported as failed. The command exits non-zero when any
cluster is unhealthy.`,
		Example: `  # Check all clusters
  fanout cluster health

  # Check production clusters with more patience
  fanout cluster health --cluster-selector env=prod --retries 4 --max-delay 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd)
		},
	}

	return cmd
}

func runHealth(cmd *cobra.Command) error {
	ctx := cmd.Context()

	rt, err := cmdutil.FromContext(ctx)
	if err != nil {
		return err
	}

	mgr, err := rt.Connect(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()

	statuses, err := mgr.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	formatter, err := rt.Formatter()
	if err != nil {
		return err
	}
	if err := formatter.FormatStatus(cmd.OutOrStdout(), statusRows(statuses)); err != nil {
		return err
	}

	unhealthy := lo.CountBy(statuses, func(s kube.HealthStatus) bool {
		return !s.Healthy
	})
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d clusters unhealthy", unhealthy, len(statuses))
	}
	return nil
}

func statusRows(statuses []kube.HealthStatus) []output.StatusRow {
	return lo.Map(statuses, func(s kube.HealthStatus, _ int) output.StatusRow {
		return output.StatusRow{
			Target:   s.Cluster,
			Detail:   s.ServerVersion,
			Err:      s.Error,
			Attempts: s.Attempts,
			Duration: s.Latency,
		}
	})
}
