// Package clitest provides fixtures for command tests: throwaway kubeconfigs,
// fake clusters and a ready-made command runtime.
package clitest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	"github.com/aryankumar/fanout/internal/cluster"
	"github.com/aryankumar/fanout/internal/config"
	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/util"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// ServerVersion is what every fake cluster reports
const ServerVersion = "v1.31.3"

// WriteKubeconfig writes a kubeconfig with one context per name; the first
// is the current context
func WriteKubeconfig(t testing.TB, contexts ...string) string {
	t.Helper()

	cfg := api.Config{
		Clusters:  make(map[string]*api.Cluster),
		AuthInfos: make(map[string]*api.AuthInfo),
		Contexts:  make(map[string]*api.Context),
	}
	for i, name := range contexts {
		cfg.Clusters[name] = &api.Cluster{Server: fmt.Sprintf("https://%s.example.com:6443", name)}
		cfg.AuthInfos[name] = &api.AuthInfo{Token: "token-" + name}
		cfg.Contexts[name] = &api.Context{Cluster: name, AuthInfo: name}
		if i == 0 {
			cfg.CurrentContext = name
		}
	}

	path := filepath.Join(t.TempDir(), "kubeconfig")
	if err := clientcmd.WriteToFile(cfg, path); err != nil {
		t.Fatalf("failed to write kubeconfig: %v", err)
	}
	return path
}

// FakeClient returns a client backed by a fake clientset holding objects
func FakeClient(name string, objects ...runtime.Object) *cluster.Client {
	clientset := fake.NewSimpleClientset(objects...)
	clientset.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &version.Info{
		Major:      "1",
		Minor:      "31",
		GitVersion: ServerVersion,
	}
	return cluster.NewClientForClientset(name, name, clientset)
}

// Clientset returns the fake behind a client made by FakeClient
func Clientset(c *cluster.Client) *fake.Clientset {
	return c.Clientset.(*fake.Clientset)
}

// FailTimes makes the first n matching requests fail with err
func FailTimes(n int32, err error) (k8stesting.ReactionFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(k8stesting.Action) (bool, runtime.Object, error) {
		if calls.Add(1) <= n {
			return true, nil, err
		}
		return false, nil, nil
	}, &calls
}

// Factory hands out the given clients by name; unknown names are not found
func Factory(clients ...*cluster.Client) cluster.ClientFactory {
	byName := make(map[string]*cluster.Client, len(clients))
	for _, c := range clients {
		byName[c.Name] = c
	}
	return func(_ context.Context, name string) (*cluster.Client, error) {
		c, ok := byName[name]
		if !ok {
			return nil, util.WrapTargetError(name, util.ErrTargetNotFound)
		}
		return c, nil
	}
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers, such as a logger
// shared by fan-out workers
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// FastRetry retries twice with millisecond waits
func FastRetry() config.RetryConfig {
	return config.RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		MaxDelay:   5 * time.Millisecond,
	}
}

// NewRuntime builds a runtime over a kubeconfig listing every client, with
// table output and fast retries. Logs go to the returned buffer.
func NewRuntime(t testing.TB, clients ...*cluster.Client) (*cmdutil.Runtime, *SyncBuffer) {
	t.Helper()

	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name)
	}

	logs := &SyncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	exec := executor.NewExecutor(executor.WithCapacity(4), executor.WithLogger(logger))
	t.Cleanup(func() { exec.Shutdown(true) })

	cfg := &config.Config{
		Defaults: config.DefaultsConfig{
			Timeout:      10 * time.Second,
			Parallel:     4,
			OutputFormat: config.DefaultOutputFormat,
			NoColor:      true,
		},
		Retry: FastRetry(),
	}

	rt := &cmdutil.Runtime{
		Config:        cfg,
		Settings:      config.NewManager(""),
		Loader:        config.NewKubeconfigLoader(WriteKubeconfig(t, names...)),
		Executor:      exec,
		Logger:        logger,
		ClientFactory: Factory(clients...),
	}
	return rt, logs
}
