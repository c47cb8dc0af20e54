package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/util"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastPolicy retries quickly so tests exercising backoff stay fast
func fastPolicy(retries int) executor.RetryPolicy {
	return executor.RetryPolicy{
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Millisecond,
	}
}

// newFakeClient wraps a fake clientset that reports gitVersion from discovery
func newFakeClient(name, gitVersion string, objects ...runtime.Object) *Client {
	clientset := fake.NewSimpleClientset(objects...)
	clientset.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &version.Info{
		Major:      "1",
		Minor:      "31",
		GitVersion: gitVersion,
	}
	return NewClientForClientset(name, name, clientset)
}

func fakeClientset(c *Client) *fake.Clientset {
	return c.Clientset.(*fake.Clientset)
}

func prependVersionReactor(c *Client, reaction k8stesting.ReactionFunc) {
	fakeClientset(c).PrependReactor("get", "version", reaction)
}

// failTimes makes the first n matching requests fail with err
func failTimes(n int32, err error) (k8stesting.ReactionFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(k8stesting.Action) (bool, runtime.Object, error) {
		if calls.Add(1) <= n {
			return true, nil, err
		}
		return false, nil, nil
	}, &calls
}

func newTestExecutor(t *testing.T) *executor.Executor {
	t.Helper()

	exec := executor.NewExecutor(executor.WithCapacity(4), executor.WithLogger(testLogger()))
	t.Cleanup(func() { exec.Shutdown(true) })
	return exec
}

// newTestManager returns a manager already holding clients
func newTestManager(t *testing.T, clients ...*Client) *Manager {
	t.Helper()

	byName := make(map[string]*Client, len(clients))
	for _, c := range clients {
		byName[c.Name] = c
	}

	m := NewManager(nil, newTestExecutor(t), testLogger(),
		WithRetryPolicy(fastPolicy(2)),
		WithClientFactory(func(_ context.Context, name string) (*Client, error) {
			c, ok := byName[name]
			if !ok {
				return nil, util.WrapTargetError(name, util.ErrTargetNotFound)
			}
			return c, nil
		}))

	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name)
	}
	if len(names) > 0 {
		if err := m.Connect(context.Background(), names); err != nil {
			t.Fatalf("failed to connect test clients: %v", err)
		}
	}

	return m
}

// createTestKubeconfig writes a kubeconfig with one context per cluster name
func createTestKubeconfig(t *testing.T, clusters []string) string {
	t.Helper()

	cfg := api.Config{
		Clusters:  make(map[string]*api.Cluster),
		AuthInfos: make(map[string]*api.AuthInfo),
		Contexts:  make(map[string]*api.Context),
	}

	for i, clusterName := range clusters {
		cfg.Clusters[clusterName] = &api.Cluster{
			Server:                fmt.Sprintf("https://cluster%d.example.com:6443", i+1),
			InsecureSkipTLSVerify: true,
		}
		cfg.AuthInfos[clusterName] = &api.AuthInfo{
			Token: fmt.Sprintf("token-%s", clusterName),
		}
		cfg.Contexts[clusterName] = &api.Context{
			Cluster:   clusterName,
			AuthInfo:  clusterName,
			Namespace: "default",
		}
		if i == 0 {
			cfg.CurrentContext = clusterName
		}
	}

	path := filepath.Join(t.TempDir(), "kubeconfig")
	if err := clientcmd.WriteToFile(cfg, path); err != nil {
		t.Fatalf("failed to write kubeconfig: %v", err)
	}
	return path
}

func TestNewManager(t *testing.T) {
	loader := config.NewKubeconfigLoader("")
	exec := newTestExecutor(t)

	manager := NewManager(loader, exec, nil)

	if manager.loader != loader {
		t.Error("expected loader to be set")
	}
	if manager.Executor() != exec {
		t.Error("expected executor to be set")
	}
	if manager.logger == nil {
		t.Error("expected default logger when nil is provided")
	}
	if manager.Policy().MaxRetries != executor.DefaultMaxRetries {
		t.Errorf("expected default retry policy, got %+v", manager.Policy())
	}
	if manager.Count() != 0 || manager.IsClosed() {
		t.Error("expected an empty, open manager")
	}
}

func TestManager_Connect(t *testing.T) {
	path := createTestKubeconfig(t, []string{"cluster1", "cluster2", "cluster3"})

	tests := []struct {
		name         string
		clusterNames []string
		wantErr      error
		wantCount    int
	}{
		{
			name:         "single cluster",
			clusterNames: []string{"cluster1"},
			wantCount:    1,
		},
		{
			name:         "multiple clusters",
			clusterNames: []string{"cluster1", "cluster2", "cluster3"},
			wantCount:    3,
		},
		{
			name:         "partial failure keeps the good clients",
			clusterNames: []string{"cluster1", "ghost"},
			wantErr:      util.ErrTargetNotFound,
			wantCount:    1,
		},
		{
			name:         "empty cluster list",
			clusterNames: []string{},
			wantErr:      util.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(config.NewKubeconfigLoader(path), newTestExecutor(t), testLogger(),
				WithRetryPolicy(fastPolicy(0)),
				WithRequestTimeout(5*time.Second))
			defer manager.Close()

			err := manager.Connect(context.Background(), tt.clusterNames)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if manager.Count() != tt.wantCount {
				t.Errorf("expected %d clients, got %d", tt.wantCount, manager.Count())
			}
			for _, c := range manager.Clients() {
				if c.RestConfig == nil || c.RestConfig.Timeout != 5*time.Second {
					t.Errorf("client %s missing request timeout", c.Name)
				}
			}
		})
	}
}

func TestManager_Connect_ReportsEveryFailure(t *testing.T) {
	manager := newTestManager(t)

	err := manager.Connect(context.Background(), []string{"a", "b"})

	var multi *util.MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("expected MultiError, got %v", err)
	}
	if len(multi.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(multi.Errors))
	}
	for _, e := range multi.Errors {
		var targetErr *util.TargetError
		if !errors.As(e, &targetErr) {
			t.Errorf("expected TargetError, got %v", e)
		}
	}
}

func TestManager_Connect_RetriesFactory(t *testing.T) {
	var calls atomic.Int32
	manager := NewManager(nil, newTestExecutor(t), testLogger(),
		WithRetryPolicy(fastPolicy(2)),
		WithClientFactory(func(_ context.Context, name string) (*Client, error) {
			if calls.Add(1) == 1 {
				return nil, apierrors.NewServiceUnavailable("warming up")
			}
			return newFakeClient(name, "v1.31.0"), nil
		}))

	if err := manager.Connect(context.Background(), []string{"prod"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 factory calls, got %d", calls.Load())
	}
	if !manager.Has("prod") {
		t.Error("expected prod to be connected")
	}
}

func TestManager_Connect_Closed(t *testing.T) {
	manager := newTestManager(t)
	manager.Close()

	err := manager.Connect(context.Background(), []string{"a"})
	if !errors.Is(err, util.ErrShutdown) {
		t.Errorf("expected ErrShutdown, got %v", err)
	}
}

func TestManager_ConnectAll(t *testing.T) {
	path := createTestKubeconfig(t, []string{"cluster1", "cluster2"})
	manager := NewManager(config.NewKubeconfigLoader(path), newTestExecutor(t), testLogger())

	if err := manager.ConnectAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(manager.Names(), ","); got != "cluster1,cluster2" {
		t.Errorf("got names %q", got)
	}
}

func TestManager_ConnectAll_NoLoader(t *testing.T) {
	manager := NewManager(nil, newTestExecutor(t), testLogger())

	if err := manager.ConnectAll(context.Background()); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestManager_Client(t *testing.T) {
	manager := newTestManager(t, newFakeClient("cluster1", "v1.31.0"))

	tests := []struct {
		name        string
		clusterName string
		wantErr     error
	}{
		{name: "existing client", clusterName: "cluster1"},
		{name: "non-existent client", clusterName: "nonexistent", wantErr: util.ErrTargetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := manager.Client(tt.clusterName)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Name != tt.clusterName {
				t.Errorf("expected client name %s, got %s", tt.clusterName, client.Name)
			}
		})
	}
}

func TestManager_Close(t *testing.T) {
	manager := newTestManager(t, newFakeClient("cluster1", "v1.31.0"), newFakeClient("cluster2", "v1.31.0"))

	manager.Close()
	manager.Close()

	if !manager.IsClosed() {
		t.Error("expected manager to be closed")
	}
	if manager.Count() != 0 {
		t.Errorf("expected 0 clients after close, got %d", manager.Count())
	}
	if _, err := manager.Client("cluster1"); !errors.Is(err, util.ErrShutdown) {
		t.Errorf("expected ErrShutdown after close, got %v", err)
	}
}

func TestManager_ClientsSorted(t *testing.T) {
	manager := newTestManager(t,
		newFakeClient("zeta", "v1.31.0"),
		newFakeClient("alpha", "v1.31.0"),
		newFakeClient("mid", "v1.31.0"))

	names := make([]string, 0, 3)
	for _, c := range manager.Clients() {
		names = append(names, c.Name)
	}

	if got := strings.Join(names, ","); got != "alpha,mid,zeta" {
		t.Errorf("got %q, want alpha,mid,zeta", got)
	}
	if got := strings.Join(manager.Names(), ","); got != "alpha,mid,zeta" {
		t.Errorf("got names %q", got)
	}
	if !manager.Has("mid") || manager.Has("omega") {
		t.Error("Has reported the wrong membership")
	}
}

func TestManager_HealthCheck(t *testing.T) {
	throttled := newFakeClient("cluster2", "v1.31.2")
	reaction, calls := failTimes(1, apierrors.NewTooManyRequests("slow down", 0))
	prependVersionReactor(throttled, reaction)

	broken := newFakeClient("cluster3", "v1.31.3")
	prependVersionReactor(broken, func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "version"}, "", errors.New("rbac"))
	})

	manager := newTestManager(t, broken, throttled, newFakeClient("cluster1", "v1.31.1"))

	statuses, err := manager.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	tests := []struct {
		cluster     string
		healthy     bool
		version     string
		minAttempts int
	}{
		{cluster: "cluster1", healthy: true, version: "v1.31.1", minAttempts: 1},
		{cluster: "cluster2", healthy: true, version: "v1.31.2", minAttempts: 2},
		{cluster: "cluster3", healthy: false, minAttempts: 1},
	}

	for i, tt := range tests {
		got := statuses[i]
		if got.Cluster != tt.cluster {
			t.Errorf("status %d: got cluster %q, want %q", i, got.Cluster, tt.cluster)
			continue
		}
		if got.Healthy != tt.healthy {
			t.Errorf("%s: got healthy %v, want %v (err %v)", tt.cluster, got.Healthy, tt.healthy, got.Error)
		}
		if got.ServerVersion != tt.version {
			t.Errorf("%s: got version %q, want %q", tt.cluster, got.ServerVersion, tt.version)
		}
		if got.Attempts < tt.minAttempts {
			t.Errorf("%s: got %d attempts, want at least %d", tt.cluster, got.Attempts, tt.minAttempts)
		}
	}

	if statuses[2].Attempts != 1 {
		t.Errorf("forbidden must not be retried, got %d attempts", statuses[2].Attempts)
	}
	if !apierrors.IsForbidden(statuses[2].Error) {
		t.Errorf("expected forbidden error, got %v", statuses[2].Error)
	}
	if calls.Load() != 2 {
		t.Errorf("expected throttled cluster to be asked twice, got %d", calls.Load())
	}
}

func TestManager_HealthCheck_ContextCancellation(t *testing.T) {
	manager := newTestManager(t, newFakeClient("cluster1", "v1.31.0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	statuses, err := manager.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if statuses != nil {
		t.Errorf("a cancelled health check must not report statuses, got %+v", statuses)
	}
}

func TestManager_HealthCheck_NoClients(t *testing.T) {
	manager := newTestManager(t)

	statuses, err := manager.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected no statuses, got %d", len(statuses))
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	clients := make([]*Client, 0, 5)
	for i := 1; i <= 5; i++ {
		clients = append(clients, newFakeClient(fmt.Sprintf("cluster%d", i), "v1.31.0"))
	}
	manager := newTestManager(t, clients...)

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			clusterName := fmt.Sprintf("cluster%d", (id%5)+1)
			if _, err := manager.Client(clusterName); err != nil {
				errCh <- fmt.Errorf("read %d: %w", id, err)
			}
		}(i)
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			if len(manager.Clients()) == 0 {
				errCh <- fmt.Errorf("clients %d: got 0 clients", id)
			}
		}(i)
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.HealthCheck(context.Background()); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent access error: %v", err)
	}
}
