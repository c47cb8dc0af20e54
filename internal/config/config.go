package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/util"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultConfigName = ".fanout"
	defaultConfigDir  = ".fanout"

	// EnvPrefix is prepended to environment overrides, e.g. FANOUT_RETRY_MAXRETRIES
	EnvPrefix = "FANOUT"

	DefaultTimeout      = 30 * time.Second
	DefaultOutputFormat = "table"
)

// FlagKeys maps command-line flags to the config keys they override
var FlagKeys = map[string]string{
	"timeout":    "defaults.timeout",
	"parallel":   "defaults.parallel",
	"output":     "defaults.outputFormat",
	"no-color":   "defaults.noColor",
	"retries":    "retry.maxRetries",
	"base-delay": "retry.baseDelay",
	"max-delay":  "retry.maxDelay",
	"backoff":    "retry.multiplier",
	"rate-limit": "retry.rateLimit",
	"burst":      "retry.burst",
}

// Formats accepted by Defaults.OutputFormat
var validOutputFormats = []string{"table", "json", "yaml"}

// Manager handles fanout configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     &Config{},
	}
}

// Load loads the configuration from file, environment and defaults
func (m *Manager) Load() (*Config, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// ~/.fanout/.fanout.yaml, then ~/.fanout.yaml
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		m.viper.AddConfigPath(home)
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	m.setDefaults()

	m.config = &Config{}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()

	return m.config, nil
}

// BindFlags lets flags from FlagKeys override the file and environment.
// Flags the user did not set leave the loaded value alone. Flags missing
// from the set are ignored.
func (m *Manager) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := m.viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// setDefaults registers every key with viper so environment overrides
// reach Unmarshal even when the config file does not mention them
func (m *Manager) setDefaults() {
	m.viper.SetDefault("defaultContext", "")
	m.viper.SetDefault("defaults.timeout", DefaultTimeout)
	m.viper.SetDefault("defaults.parallel", executor.DefaultCapacity)
	m.viper.SetDefault("defaults.outputFormat", DefaultOutputFormat)
	m.viper.SetDefault("defaults.noColor", false)
	m.viper.SetDefault("retry.maxRetries", executor.DefaultMaxRetries)
	m.viper.SetDefault("retry.baseDelay", executor.DefaultBaseDelay)
	m.viper.SetDefault("retry.multiplier", executor.DefaultMultiplier)
	m.viper.SetDefault("retry.maxDelay", executor.DefaultMaxDelay)
	m.viper.SetDefault("retry.rateLimit", 0.0)
	m.viper.SetDefault("retry.burst", 0)
}

// Config returns the current configuration
func (m *Manager) Config() *Config {
	return m.config
}

// ConfigFileUsed returns the path of the file that was loaded, if any
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// ClusterConfig returns configuration for a specific cluster alias
func (m *Manager) ClusterConfig(name string) (*ClusterConfig, bool) {
	if m.config.Clusters == nil {
		return nil, false
	}

	cluster, ok := m.config.Clusters[name]
	return &cluster, ok
}

// EnabledClusters returns the contexts of enabled clusters, sorted
func (m *Manager) EnabledClusters() []string {
	return m.ClustersByLabel(nil)
}

// ClustersByLabel returns the contexts of enabled clusters matching every given label, sorted
func (m *Manager) ClustersByLabel(labels map[string]string) []string {
	if m.config.Clusters == nil {
		return nil
	}

	matching := make([]string, 0)
	for name, cluster := range m.config.Clusters {
		if !cluster.Enabled || !matchesLabels(cluster.Labels, labels) {
			continue
		}

		contextName := cluster.Context
		if contextName == "" {
			contextName = name
		}
		matching = append(matching, contextName)
	}

	sort.Strings(matching)
	return matching
}

// applyDefaults fills values the file left at invalid zero values
func (m *Manager) applyDefaults() {
	if m.config == nil {
		return
	}

	if m.config.Defaults.Timeout == 0 {
		m.config.Defaults.Timeout = DefaultTimeout
	}
	if m.config.Defaults.Parallel == 0 {
		m.config.Defaults.Parallel = executor.DefaultCapacity
	}
	if m.config.Defaults.OutputFormat == "" {
		m.config.Defaults.OutputFormat = DefaultOutputFormat
	}

	if m.config.Retry.Multiplier == 0 {
		m.config.Retry.Multiplier = executor.DefaultMultiplier
	}
	if m.config.Retry.MaxDelay == 0 {
		m.config.Retry.MaxDelay = executor.DefaultMaxDelay
	}
	if m.config.Retry.RateLimit > 0 && m.config.Retry.Burst == 0 {
		m.config.Retry.Burst = 1
	}

	for name, cluster := range m.config.Clusters {
		if cluster.Alias == "" {
			cluster.Alias = name
		}
		m.config.Clusters[name] = cluster
	}
}

// Validate reports every invalid setting as a *util.ValidationError
func (c *Config) Validate() error {
	var errs util.MultiError

	if c.Defaults.Timeout < 0 {
		errs.Add(util.NewValidationError("defaults.timeout", c.Defaults.Timeout, "must not be negative"))
	}
	if c.Defaults.Parallel < 1 {
		errs.Add(util.NewValidationError("defaults.parallel", c.Defaults.Parallel, "must be at least 1"))
	}
	if !isValidOutputFormat(c.Defaults.OutputFormat) {
		errs.Add(util.NewValidationError("defaults.outputFormat", c.Defaults.OutputFormat,
			fmt.Sprintf("must be one of %s", strings.Join(validOutputFormats, ", "))))
	}

	if err := c.Retry.Policy().Validate(); err != nil {
		var multi *util.MultiError
		if errors.As(err, &multi) {
			for _, e := range multi.Errors {
				errs.Add(e)
			}
		} else {
			errs.Add(err)
		}
	}
	if c.Retry.RateLimit < 0 {
		errs.Add(util.NewValidationError("retry.rateLimit", c.Retry.RateLimit, "must not be negative"))
	}
	if c.Retry.Burst < 0 {
		errs.Add(util.NewValidationError("retry.burst", c.Retry.Burst, "must not be negative"))
	}

	for name, cluster := range c.Clusters {
		if strings.TrimSpace(cluster.Context) == "" {
			errs.Add(util.NewValidationError(fmt.Sprintf("clusters.%s.context", name), cluster.Context, "must not be empty"))
		}
	}

	return errs.ErrorOrNil()
}

// Policy builds the retry policy described by the config
func (r RetryConfig) Policy() executor.RetryPolicy {
	return executor.RetryPolicy{
		MaxRetries: r.MaxRetries,
		BaseDelay:  r.BaseDelay,
		Multiplier: r.Multiplier,
		MaxDelay:   r.MaxDelay,
		Retryable:  executor.DefaultRetryable,
	}
}

// ExecutorOptions returns the executor settings described by the config
func (c *Config) ExecutorOptions() []executor.Option {
	opts := []executor.Option{
		executor.WithCapacity(c.Defaults.Parallel),
	}
	if c.Retry.RateLimit > 0 {
		opts = append(opts, executor.WithRateLimit(c.Retry.RateLimit, c.Retry.Burst))
	}
	return opts
}

// matchesLabels checks if cluster labels match the required labels
func matchesLabels(clusterLabels, requiredLabels map[string]string) bool {
	for key, value := range requiredLabels {
		clusterValue, exists := clusterLabels[key]
		if !exists || clusterValue != value {
			return false
		}
	}

	return true
}

// ParseLabels parses a selector of the form "env=prod,region=us-east"
func ParseLabels(selector string) (map[string]string, error) {
	labels := make(map[string]string)
	if strings.TrimSpace(selector) == "" {
		return labels, nil
	}

	for _, pair := range strings.Split(selector, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, util.NewValidationError("cluster-selector", pair, "must be key=value")
		}
		labels[key] = strings.TrimSpace(value)
	}

	return labels, nil
}

// MergeTargetInfo merges aliases and labels from the config into kubeconfig target info
func (m *Manager) MergeTargetInfo(targets []TargetInfo) []TargetInfo {
	if m.config.Clusters == nil {
		return targets
	}

	byContext := make(map[string]ClusterConfig, len(m.config.Clusters))
	for _, cfg := range m.config.Clusters {
		byContext[cfg.Context] = cfg
	}

	for i := range targets {
		if cfg, ok := byContext[targets[i].Context]; ok {
			targets[i].Alias = cfg.Alias
			targets[i].Labels = cfg.Labels
		}
	}

	return targets
}

func isValidOutputFormat(format string) bool {
	for _, f := range validOutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
