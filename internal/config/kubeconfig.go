package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aryankumar/fanout/internal/util"
	"github.com/aryankumar/fanout/pkg/version"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// Client-side throttling is left to the executor's gate and rate limiter,
// so each rest.Config gets generous QPS and burst values.
const (
	defaultQPS   = 50
	defaultBurst = 100
)

// KubeconfigLoader resolves kubeconfig files and builds per-context client configs
type KubeconfigLoader struct {
	paths []string

	mu     sync.Mutex
	loaded *api.Config
}

// NewKubeconfigLoader creates a new kubeconfig loader
// It checks sources in the following order:
// 1. Explicit path (--kubeconfig flag)
// 2. KUBECONFIG environment variable (multiple paths joined by the OS list separator)
// 3. Default ~/.kube/config
func NewKubeconfigLoader(explicitPath string) *KubeconfigLoader {
	loader := &KubeconfigLoader{
		paths: make([]string, 0),
	}

	if explicitPath != "" {
		if expandedPath, err := expandPath(explicitPath); err == nil {
			loader.paths = append(loader.paths, expandedPath)
		}
		return loader
	}

	if kubeconfigEnv := os.Getenv(clientcmd.RecommendedConfigPathEnvVar); kubeconfigEnv != "" {
		for _, path := range filepath.SplitList(kubeconfigEnv) {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			if expandedPath, err := expandPath(path); err == nil {
				loader.paths = append(loader.paths, expandedPath)
			}
		}
	}

	if len(loader.paths) == 0 {
		if home, err := os.UserHomeDir(); err == nil {
			loader.paths = append(loader.paths, filepath.Join(home, ".kube", "config"))
		}
	}

	return loader
}

// Load returns the merged kubeconfig from all sources. The result is cached.
func (l *KubeconfigLoader) Load() (*api.Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded != nil {
		return l.loaded, nil
	}

	if len(l.paths) == 0 {
		return nil, fmt.Errorf("no kubeconfig paths available: %w", util.ErrInvalidConfig)
	}

	loadingRules := &clientcmd.ClientConfigLoadingRules{
		Precedence: l.paths,
	}

	config, err := loadingRules.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	if config == nil || len(config.Contexts) == 0 {
		return nil, fmt.Errorf("kubeconfig %s defines no contexts: %w", strings.Join(l.paths, ", "), util.ErrInvalidConfig)
	}

	l.loaded = config
	return config, nil
}

// Contexts returns all context names, sorted
func (l *KubeconfigLoader) Contexts() ([]string, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	contexts := make([]string, 0, len(config.Contexts))
	for name := range config.Contexts {
		contexts = append(contexts, name)
	}
	sort.Strings(contexts)

	return contexts, nil
}

// CurrentContext returns the current context name
func (l *KubeconfigLoader) CurrentContext() (string, error) {
	config, err := l.Load()
	if err != nil {
		return "", err
	}

	return config.CurrentContext, nil
}

// ResolveContexts checks that every requested context exists. With no names it
// returns the current context alone.
func (l *KubeconfigLoader) ResolveContexts(names []string) ([]string, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		if config.CurrentContext == "" {
			return nil, fmt.Errorf("no targets given and kubeconfig has no current context: %w", util.ErrTargetNotFound)
		}
		return []string{config.CurrentContext}, nil
	}

	var errs util.MultiError
	seen := make(map[string]bool, len(names))
	resolved := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if _, ok := config.Contexts[name]; !ok {
			errs.Add(util.WrapTargetError(name, fmt.Errorf("context not in kubeconfig: %w", util.ErrTargetNotFound)))
			continue
		}
		resolved = append(resolved, name)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Targets returns information about every context, sorted by context name
func (l *KubeconfigLoader) Targets() ([]TargetInfo, error) {
	contexts, err := l.Contexts()
	if err != nil {
		return nil, err
	}

	targets := make([]TargetInfo, 0, len(contexts))
	for _, name := range contexts {
		info, err := l.TargetInfo(name)
		if err != nil {
			// contexts pointing at missing clusters are skipped
			continue
		}
		targets = append(targets, *info)
	}

	return targets, nil
}

// TargetInfo returns information about a specific context
func (l *KubeconfigLoader) TargetInfo(contextName string) (*TargetInfo, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	context, exists := config.Contexts[contextName]
	if !exists || context == nil {
		return nil, util.WrapTargetError(contextName, util.ErrTargetNotFound)
	}

	cluster := config.Clusters[context.Cluster]
	if cluster == nil {
		return nil, util.WrapTargetError(contextName,
			fmt.Errorf("cluster %q not found: %w", context.Cluster, util.ErrInvalidConfig))
	}

	info := &TargetInfo{
		Name:      context.Cluster,
		Context:   contextName,
		Server:    cluster.Server,
		Namespace: context.Namespace,
		User:      context.AuthInfo,
		Current:   contextName == config.CurrentContext,
	}
	if info.Namespace == "" {
		info.Namespace = "default"
	}

	return info, nil
}

// RestConfig creates a rest.Config for a context. timeout bounds each HTTP
// request; zero leaves client-go's default.
func (l *KubeconfigLoader) RestConfig(contextName string, timeout time.Duration) (*rest.Config, error) {
	if len(l.paths) == 0 {
		return nil, fmt.Errorf("no kubeconfig paths available: %w", util.ErrInvalidConfig)
	}

	if contextName != "" {
		config, err := l.Load()
		if err != nil {
			return nil, util.WrapTargetError(contextName, err)
		}
		if _, exists := config.Contexts[contextName]; !exists {
			return nil, util.WrapTargetError(contextName, fmt.Errorf("context not in kubeconfig: %w", util.ErrTargetNotFound))
		}
	}

	loadingRules := &clientcmd.ClientConfigLoadingRules{
		Precedence: l.paths,
	}

	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, util.WrapTargetError(contextName, fmt.Errorf("failed to build client config: %w", err))
	}

	restConfig.QPS = defaultQPS
	restConfig.Burst = defaultBurst
	restConfig.UserAgent = version.Get().UserAgent()
	if timeout > 0 {
		restConfig.Timeout = timeout
	}

	return restConfig, nil
}

// Paths returns the kubeconfig paths being used
func (l *KubeconfigLoader) Paths() []string {
	return l.paths
}

// expandPath expands ~ to home directory and evaluates environment variables
func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
