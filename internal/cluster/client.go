package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryankumar/fanout/internal/util"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// NewClient creates a new cluster client from a REST config.
// No request is made; connectivity is checked by ServerVersion.
func NewClient(name string, contextName string, restConfig *rest.Config, logger *slog.Logger) (*Client, error) {
	if restConfig == nil {
		return nil, util.WrapTargetError(name, fmt.Errorf("rest config cannot be nil: %w", util.ErrInvalidConfig))
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, util.WrapTargetError(name, fmt.Errorf("failed to create clientset: %w", err))
	}

	logger.Debug("created cluster client",
		"cluster", name,
		"context", contextName,
		"server", restConfig.Host)

	return &Client{
		Name:       name,
		Context:    contextName,
		Clientset:  clientset,
		RestConfig: restConfig,
	}, nil
}

// NewClientForClientset wraps an existing clientset, such as a fake one
func NewClientForClientset(name string, contextName string, clientset kubernetes.Interface) *Client {
	return &Client{
		Name:      name,
		Context:   contextName,
		Clientset: clientset,
	}
}

// ServerVersion asks the API server for its version. It is the lightest
// authenticated request and doubles as a health check.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	type result struct {
		version string
		err     error
	}
	resultCh := make(chan result, 1)

	// discovery does not take a context, so the call is raced against ctx
	go func() {
		info, err := c.Clientset.Discovery().ServerVersion()
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{version: info.GitVersion}
	}()

	select {
	case <-ctx.Done():
		return "", util.WrapTargetError(c.Name, fmt.Errorf("get server version: %w", ctx.Err()))
	case res := <-resultCh:
		if res.err != nil {
			return "", util.WrapTargetError(c.Name, fmt.Errorf("get server version: %w", res.err))
		}
		return res.version, nil
	}
}

// String returns a string representation of the client
func (c *Client) String() string {
	return fmt.Sprintf("Client{Name: %s, Context: %s}", c.Name, c.Context)
}
