package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/util"
)

// ClientFactory builds a client for a kubeconfig context
type ClientFactory func(ctx context.Context, contextName string) (*Client, error)

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithClientFactory replaces how clients are built, e.g. with fake clientsets in tests
func WithClientFactory(factory ClientFactory) ManagerOption {
	return func(m *Manager) {
		if factory != nil {
			m.factory = factory
		}
	}
}

// WithRetryPolicy sets the policy applied to every per-cluster request
func WithRetryPolicy(policy executor.RetryPolicy) ManagerOption {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithRequestTimeout bounds each HTTP request made by built clients
func WithRequestTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.requestTimeout = timeout
	}
}

// Manager caches one client per cluster and fans requests out to them
// through a shared executor
type Manager struct {
	// clients is a map of cluster name to client
	clients map[string]*Client

	// mu protects clients and closed
	mu sync.RWMutex

	// exec runs every per-cluster request
	exec *executor.Executor

	// policy is the retry policy for per-cluster requests
	policy executor.RetryPolicy

	// loader handles kubeconfig loading and parsing
	loader *config.KubeconfigLoader

	factory        ClientFactory
	requestTimeout time.Duration

	// logger for structured logging
	logger *slog.Logger

	closed bool
}

// NewManager creates a new cluster manager. loader may be nil when a
// ClientFactory is supplied and ConnectAll is not used.
func NewManager(loader *config.KubeconfigLoader, exec *executor.Executor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		clients: make(map[string]*Client),
		exec:    exec,
		policy:  executor.DefaultRetryPolicy(),
		loader:  loader,
		logger:  logger,
	}
	m.factory = m.buildClient

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// buildClient is the default ClientFactory: kubeconfig context to clientset
func (m *Manager) buildClient(ctx context.Context, contextName string) (*Client, error) {
	if m.loader == nil {
		return nil, util.WrapTargetError(contextName, fmt.Errorf("no kubeconfig loader: %w", util.ErrInvalidConfig))
	}

	restConfig, err := m.loader.RestConfig(contextName, m.requestTimeout)
	if err != nil {
		return nil, err
	}

	return NewClient(contextName, contextName, restConfig, m.logger)
}

// Connect builds clients for the named clusters concurrently. Clients that
// could be built are kept even when others fail; the failures are returned
// together as a *util.MultiError.
func (m *Manager) Connect(ctx context.Context, clusterNames []string) error {
	if len(clusterNames) == 0 {
		return fmt.Errorf("no cluster names provided: %w", util.ErrInvalidConfig)
	}
	if m.IsClosed() {
		return fmt.Errorf("cluster manager is closed: %w", util.ErrShutdown)
	}

	m.logger.Info("connecting to clusters",
		"count", len(clusterNames),
		"clusters", clusterNames)

	build := func(ctx context.Context, name string) (*Client, error) {
		m.logger.Debug("connecting to cluster", "cluster", name)
		return m.factory(ctx, name)
	}

	outcomes, err := executor.MapOutcomes(ctx, m.exec, build, clusterNames,
		executor.WithRetryPolicy(m.policy))
	if err != nil {
		return err
	}

	var errs util.MultiError
	for _, o := range outcomes {
		if o.Err != nil {
			m.logger.Error("failed to connect to cluster",
				"cluster", o.Item,
				"attempts", o.Attempts,
				"error", o.Err)
			errs.Add(targetFailure(o.Item, o.Err))
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			m.logger.Warn("manager is closed, skipping client storage", "cluster", o.Item)
			continue
		}
		m.clients[o.Item] = o.Value
		m.mu.Unlock()

		m.logger.Debug("connected to cluster", "cluster", o.Item)
	}

	if err := errs.ErrorOrNil(); err != nil {
		m.logger.Warn("some cluster connections failed",
			"total", len(clusterNames),
			"failed", len(errs.Errors),
			"succeeded", len(clusterNames)-len(errs.Errors))
		return err
	}

	m.logger.Info("connected to all clusters", "count", len(clusterNames))
	return nil
}

// ConnectAll connects to every context in the kubeconfig
func (m *Manager) ConnectAll(ctx context.Context) error {
	if m.loader == nil {
		return fmt.Errorf("no kubeconfig loader: %w", util.ErrInvalidConfig)
	}

	contexts, err := m.loader.Contexts()
	if err != nil {
		return fmt.Errorf("failed to get contexts: %w", err)
	}

	m.logger.Debug("discovered contexts", "count", len(contexts))
	return m.Connect(ctx, contexts)
}

// Client returns the client for a specific cluster
func (m *Manager) Client(name string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("cluster manager is closed: %w", util.ErrShutdown)
	}

	client, ok := m.clients[name]
	if !ok {
		return nil, util.WrapTargetError(name, fmt.Errorf("not connected: %w", util.ErrTargetNotFound))
	}

	return client, nil
}

// Clients returns all connected clients sorted by name
func (m *Manager) Clients() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].Name < clients[j].Name
	})

	return clients
}

// Names returns all connected cluster names, sorted
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Has returns true if the cluster is connected
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.clients[name]
	return ok
}

// Count returns the number of connected clusters
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.clients)
}

// Executor returns the executor the manager fans out on
func (m *Manager) Executor() *executor.Executor {
	return m.exec
}

// Policy returns the retry policy applied to per-cluster requests
func (m *Manager) Policy() executor.RetryPolicy {
	return m.policy
}

// HealthCheck asks every connected cluster for its server version and
// reports one status per cluster, sorted by name
func (m *Manager) HealthCheck(ctx context.Context) ([]HealthStatus, error) {
	m.logger.Debug("starting health checks")

	outcomes, err := Query(ctx, m, func(ctx context.Context, c *Client) (string, error) {
		return c.ServerVersion(ctx)
	})
	if err != nil {
		return nil, err
	}

	statuses := make([]HealthStatus, 0, len(outcomes))
	healthy := 0
	for _, o := range outcomes {
		status := HealthStatus{
			Cluster:       o.Item.Name,
			Healthy:       o.Err == nil,
			Error:         o.Err,
			ServerVersion: o.Value,
			Attempts:      o.Attempts,
			Latency:       o.Duration,
		}
		if status.Healthy {
			healthy++
		} else {
			m.logger.Warn("health check failed",
				"cluster", status.Cluster,
				"attempts", status.Attempts,
				"error", status.Error)
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Cluster < statuses[j].Cluster
	})

	m.logger.Info("health checks completed",
		"total", len(statuses),
		"healthy", healthy)

	return statuses, nil
}

// Close drops every cached client. Clientsets hold no resources that need
// explicit release; their transports are garbage collected.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.logger.Debug("closing cluster manager", "clients", len(m.clients))

	m.clients = make(map[string]*Client)
	m.closed = true
}

// IsClosed returns true if the manager has been closed
func (m *Manager) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// targetFailure attaches the cluster name unless the error already carries one
func targetFailure(name string, err error) error {
	if _, ok := err.(*util.TargetError); ok {
		return err
	}
	return util.WrapTargetError(name, err)
}
