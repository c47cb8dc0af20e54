package get

import (
	"fmt"
	"sort"

	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// lister describes one resource kind for runList
type lister[R any] struct {
	// kind is the plural resource name used in messages
	kind string

	fetch cluster.FetchFunc[R]

	// key returns the cluster, namespace and name used to order rows
	key func(R) (string, string, string)

	// table renders rows for table output
	table func(rows []R, wide bool) *output.Table
}

// runList fans l.fetch out over the selected clusters and writes the rows
func runList[R any](cmd *cobra.Command, l lister[R]) error {
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

	rt.Logger.Debug("listing resources", "kind", l.kind, "clusters", mgr.Count(), "strict", rt.Strict)

	var rows []R
	if rt.Strict {
		rows, err = cluster.ListAll(ctx, mgr, l.fetch, rt.CallOptions()...)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", l.kind, err)
		}
	} else {
		var failed []error
		rows, failed, err = cluster.Gather(ctx, mgr, l.fetch, rt.CallOptions()...)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", l.kind, err)
		}
		for _, ferr := range failed {
			rt.Logger.Warn("cluster skipped", "kind", l.kind, "error", ferr)
		}
	}

	if rows == nil {
		rows = []R{}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ci, ni, si := l.key(rows[i])
		cj, nj, sj := l.key(rows[j])
		if ci != cj {
			return ci < cj
		}
		if ni != nj {
			return ni < nj
		}
		return si < sj
	})

	formatter, err := rt.Formatter()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if rt.Format() != output.FormatTable {
		return formatter.Format(w, rows)
	}
	return formatter.Format(w, l.table(rows, rt.Wide))
}

// footer summarizes a listing, e.g. "Total: 12 pods across 3 clusters"
func footer[R any](rows []R, kind string, clusterOf func(R) string) string {
	clusters := lo.Uniq(lo.Map(rows, func(r R, _ int) string {
		return clusterOf(r)
	}))
	noun := "clusters"
	if len(clusters) == 1 {
		noun = "cluster"
	}
	return fmt.Sprintf("Total: %d %s across %d %s", len(rows), kind, len(clusters), noun)
}

// namespaceFlags are shared by the namespaced get subcommands
type namespaceFlags struct {
	namespace     string
	allNamespaces bool
}

func (f *namespaceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.namespace, "namespace", "n", "", "Filter by namespace")
	cmd.Flags().BoolVarP(&f.allNamespaces, "all-namespaces", "A", false, "Query all namespaces")
}

// resolve returns the namespace to query; "" means all namespaces in client-go
func (f *namespaceFlags) resolve() string {
	if f.allNamespaces {
		return ""
	}
	if f.namespace == "" {
		return "default"
	}
	return f.namespace
}
