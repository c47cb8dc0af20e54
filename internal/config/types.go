package config

import "time"

// Config represents the fanout configuration file structure
type Config struct {
	// DefaultContext is the kubeconfig context used when no targets are given
	DefaultContext string `yaml:"defaultContext,omitempty" json:"defaultContext,omitempty"`

	// Clusters is a map of cluster aliases to their configurations
	Clusters map[string]ClusterConfig `yaml:"clusters,omitempty" json:"clusters,omitempty"`

	// Defaults contains default settings for operations
	Defaults DefaultsConfig `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Retry controls how transient failures are retried
	Retry RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// ClusterConfig represents configuration for a single cluster
type ClusterConfig struct {
	// Context is the kubeconfig context name
	Context string `yaml:"context" json:"context"`

	// Alias is a friendly name for the cluster
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`

	// Labels for selecting groups of clusters
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Enabled indicates if this cluster should be included in fan-outs
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultsConfig contains default configuration values
type DefaultsConfig struct {
	// Timeout bounds a whole command, retries included
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Parallel is the executor capacity: workers and admission slots
	Parallel int `yaml:"parallel,omitempty" json:"parallel,omitempty"`

	// OutputFormat is the default output format (table, json, yaml)
	OutputFormat string `yaml:"outputFormat,omitempty" json:"outputFormat,omitempty"`

	// NoColor disables colored output
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`
}

// RetryConfig mirrors executor.RetryPolicy plus optional request pacing
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt; 0 disables retries
	MaxRetries int `yaml:"maxRetries" json:"maxRetries"`

	// BaseDelay is the wait before the first retry
	BaseDelay time.Duration `yaml:"baseDelay,omitempty" json:"baseDelay,omitempty"`

	// Multiplier grows the wait after each retry
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`

	// MaxDelay caps every wait, including Retry-After hints
	MaxDelay time.Duration `yaml:"maxDelay,omitempty" json:"maxDelay,omitempty"`

	// RateLimit paces attempt starts per second across all targets; 0 disables pacing
	RateLimit float64 `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// Burst is the number of attempts allowed at once under RateLimit
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// TargetInfo describes a kubeconfig context that can be fanned out to
type TargetInfo struct {
	// Name is the cluster name from kubeconfig
	Name string `json:"name" yaml:"name"`

	// Context is the context name
	Context string `json:"context" yaml:"context"`

	// Server is the API server URL
	Server string `json:"server" yaml:"server"`

	// Namespace is the default namespace
	Namespace string `json:"namespace" yaml:"namespace"`

	// User is the user for authentication
	User string `json:"user" yaml:"user"`

	// Current indicates if this is the current context
	Current bool `json:"current" yaml:"current"`

	// Alias is a friendly name from the fanout config
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`

	// Labels from the fanout config
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}
