package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	"github.com/aryankumar/fanout/internal/cli/get"
	targetcmd "github.com/aryankumar/fanout/internal/cli/cluster"
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/spf13/cobra"
)

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	a := newApp()
	defer a.close()

	return a.rootCmd().ExecuteContext(ctx)
}

// app owns the state the root command builds before any subcommand runs
type app struct {
	cfgFile    string
	kubeconfig string
	targets    []string
	selector   string
	verbose    bool
	strict     bool
	wide       bool
	noHeaders  bool

	clientFactory cluster.ClientFactory

	runtime *cmdutil.Runtime
	cancel  context.CancelFunc
}

type appOption func(*app)

// withClientFactory replaces kubeconfig-based client construction
func withClientFactory(factory cluster.ClientFactory) appOption {
	return func(a *app) {
		a.clientFactory = factory
	}
}

func newApp(opts ...appOption) *app {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// newRootCmd creates the root command
func newRootCmd(opts ...appOption) *cobra.Command {
	return newApp(opts...).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fanout",
		Short: "Fanout - run one Kubernetes query across many clusters",
		Long: `Fanout runs the same Kubernetes API call against many clusters at once.

Every call shares one concurrency limit, transient failures (timeouts,
throttling, unavailable API servers) are retried with exponential backoff,
and clusters that still fail are reported without hiding the others.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initRuntime(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.fanout.yaml)")
	flags.StringVar(&a.kubeconfig, "kubeconfig", "", "path to kubeconfig file (default is $HOME/.kube/config)")
	flags.StringSliceVar(&a.targets, "clusters", []string{}, "target contexts (comma-separated, empty means all)")
	flags.StringVar(&a.selector, "cluster-selector", "", "select configured clusters by label (e.g. env=prod,region=us-east)")
	flags.StringP("output", "o", "", "output format (json, yaml, table)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output with debug logging")
	flags.Bool("no-color", false, "disable colored output")
	flags.BoolVar(&a.noHeaders, "no-headers", false, "omit table headers")
	flags.BoolVar(&a.wide, "wide", false, "show full cluster names and raw errors")
	flags.Duration("timeout", config.DefaultTimeout, "timeout for the whole command, retries included")
	flags.IntP("parallel", "p", executor.DefaultCapacity, "maximum concurrent API calls across all clusters")
	flags.Int("retries", executor.DefaultMaxRetries, "retries after the first attempt for transient failures")
	flags.Duration("base-delay", executor.DefaultBaseDelay, "wait before the first retry")
	flags.Duration("max-delay", executor.DefaultMaxDelay, "upper bound for any retry wait")
	flags.Float64("backoff", executor.DefaultMultiplier, "factor the retry wait grows by")
	flags.Float64("rate-limit", 0, "API calls started per second across all clusters (0 disables)")
	flags.Int("burst", 0, "calls allowed at once under --rate-limit")
	flags.BoolVar(&a.strict, "strict", false, "fail when any cluster fails instead of skipping it")

	a.registerFlagCompletions(rootCmd)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(targetcmd.NewClusterCmd())
	rootCmd.AddCommand(get.NewGetCmd())

	return rootCmd
}

// initRuntime loads configuration, sets up logging and creates the one
// executor every fan-out in this process goes through
func (a *app) initRuntime(cmd *cobra.Command) error {
	settings := config.NewManager(a.cfgFile)
	if err := settings.BindFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := settings.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogging(cmd.ErrOrStderr(), a.verbose, cfg.Defaults.NoColor)
	if a.verbose && settings.ConfigFileUsed() != "" {
		logger.Debug("loaded configuration", "file", settings.ConfigFileUsed())
	}

	exec := executor.NewExecutor(append(cfg.ExecutorOptions(), executor.WithLogger(logger))...)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if cfg.Defaults.Timeout > 0 {
		ctx, cancel = context.WithTimeout(cmd.Context(), cfg.Defaults.Timeout)
	} else {
		ctx, cancel = context.WithCancel(cmd.Context())
	}

	// an interrupted or timed out command drops queued work at once
	go func() {
		select {
		case <-ctx.Done():
			exec.Shutdown(false)
		case <-exec.Done():
		}
	}()

	a.cancel = cancel
	a.runtime = &cmdutil.Runtime{
		Config:        cfg,
		Settings:      settings,
		Loader:        config.NewKubeconfigLoader(a.kubeconfig),
		Executor:      exec,
		Logger:        logger,
		ClientFactory: a.clientFactory,
		Targets:       a.targets,
		Selector:      a.selector,
		Strict:        a.strict,
		Wide:          a.wide,
		NoHeaders:     a.noHeaders,
	}
	cmd.SetContext(cmdutil.WithRuntime(ctx, a.runtime))

	return nil
}

// close waits for running work and releases the command context. Safe to
// call more than once.
func (a *app) close() {
	if a.runtime == nil {
		return
	}

	a.runtime.Executor.Shutdown(true)
	a.cancel()
	a.runtime = nil
}

// setupLogging configures structured logging with slog
func setupLogging(w io.Writer, verbose, noColor bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if noColor {
		// Use JSON handler for no-color mode
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Debug("verbose logging enabled")
	return logger
}
