// Package cmdutil carries the per-process state every fanout subcommand
// shares: loaded configuration, the kubeconfig loader, the single executor,
// and the global target flags.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/aryankumar/fanout/internal/util"
	"github.com/samber/lo"
)

// Runtime is built once by the root command before any subcommand runs
type Runtime struct {
	Config   *config.Config
	Settings *config.Manager
	Loader   *config.KubeconfigLoader
	Executor *executor.Executor
	Logger   *slog.Logger

	// ClientFactory replaces kubeconfig-based client construction; nil keeps the default
	ClientFactory cluster.ClientFactory

	// Targets are the contexts named with --clusters
	Targets []string

	// Selector is the raw --cluster-selector value
	Selector string

	// Strict fails a fan-out on the first cluster that cannot be reached
	Strict bool

	// Wide disables target name shortening and shows raw errors
	Wide bool

	// NoHeaders drops table headers
	NoHeaders bool
}

type runtimeKey struct{}

// WithRuntime returns a copy of ctx carrying rt
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// FromContext returns the Runtime stored by WithRuntime
func FromContext(ctx context.Context) (*Runtime, error) {
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	if !ok || rt == nil {
		return nil, fmt.Errorf("command runtime not initialized: %w", util.ErrInvalidConfig)
	}
	return rt, nil
}

// Formatter returns the formatter selected by --output or the config file
func (rt *Runtime) Formatter() (output.Formatter, error) {
	format, err := output.ParseFormat(rt.Config.Defaults.OutputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format,
		output.WithNoColor(rt.Config.Defaults.NoColor),
		output.WithWide(rt.Wide),
		output.WithNoHeaders(rt.NoHeaders)), nil
}

// Format returns the selected output format
func (rt *Runtime) Format() output.Format {
	format, err := output.ParseFormat(rt.Config.Defaults.OutputFormat)
	if err != nil {
		return output.FormatTable
	}
	return format
}

// CallOptions returns the fan-out options implied by the global flags
func (rt *Runtime) CallOptions() []executor.CallOption {
	return []executor.CallOption{
		executor.WithIgnoreErrors(!rt.Strict),
	}
}

// Connect builds a cluster manager over the executor and connects it to the
// selected clusters. Clusters that fail to connect are logged and left out;
// an error is returned only when none connect.
func (rt *Runtime) Connect(ctx context.Context) (*cluster.Manager, error) {
	targets, err := rt.ResolveTargets()
	if err != nil {
		return nil, err
	}

	opts := []cluster.ManagerOption{
		cluster.WithRetryPolicy(rt.Config.Retry.Policy()),
		cluster.WithRequestTimeout(rt.Config.Defaults.Timeout),
	}
	if rt.ClientFactory != nil {
		opts = append(opts, cluster.WithClientFactory(rt.ClientFactory))
	}
	mgr := cluster.NewManager(rt.Loader, rt.Executor, rt.Logger, opts...)

	if len(targets) == 0 {
		err = mgr.ConnectAll(ctx)
	} else {
		err = mgr.Connect(ctx, targets)
	}

	if mgr.Count() == 0 {
		mgr.Close()
		if err == nil {
			err = fmt.Errorf("no clusters connected: %w", util.ErrConnectionFailed)
		}
		return nil, err
	}
	if err != nil {
		if rt.Strict {
			mgr.Close()
			return nil, err
		}
		rt.Logger.Warn("some cluster connections failed", "error", err)
	}

	rt.Logger.Debug("connected to clusters", "count", mgr.Count(), "clusters", mgr.Names())
	return mgr, nil
}

// ResolveTargets picks the contexts to fan out to. In order: --clusters
// (each must exist in kubeconfig), --cluster-selector against the config
// file, the config file's enabled clusters, its default context. An empty
// result means every kubeconfig context.
func (rt *Runtime) ResolveTargets() ([]string, error) {
	if len(rt.Targets) > 0 {
		return rt.Loader.ResolveContexts(lo.Compact(rt.Targets))
	}

	if rt.Selector != "" {
		labels, err := config.ParseLabels(rt.Selector)
		if err != nil {
			return nil, err
		}
		matching := rt.Settings.ClustersByLabel(labels)
		if len(matching) == 0 {
			return nil, util.NewValidationError("cluster-selector", rt.Selector, "matches no enabled clusters")
		}
		return matching, nil
	}

	if enabled := rt.Settings.EnabledClusters(); len(enabled) > 0 {
		return enabled, nil
	}

	if rt.Config.DefaultContext != "" {
		return rt.Loader.ResolveContexts([]string{rt.Config.DefaultContext})
	}

	return nil, nil
}
