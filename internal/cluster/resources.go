package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aryankumar/fanout/internal/executor"
	"github.com/aryankumar/fanout/internal/util"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const nodeRolePrefix = "node-role.kubernetes.io/"

// FetchFunc lists rows from a single cluster
type FetchFunc[R any] func(ctx context.Context, c *Client) ([]R, error)

// ListAll runs fetch against every connected cluster and concatenates the
// rows. Clusters that still fail after their retries are skipped unless
// executor.WithIgnoreErrors(false) is passed. The manager's retry policy
// applies unless opts override it.
func ListAll[R any](ctx context.Context, m *Manager, fetch FetchFunc[R], opts ...executor.CallOption) ([]R, error) {
	clients := m.Clients()
	if len(clients) == 0 {
		return []R{}, nil
	}

	opts = append([]executor.CallOption{executor.WithRetryPolicy(m.policy)}, opts...)
	return executor.FlatMap(ctx, m.exec, executor.WorkFunc[*Client, []R](fetch), clients, opts...)
}

// Query runs fn against every connected cluster and returns one outcome
// per cluster, failures included, in completion order
func Query[R any](ctx context.Context, m *Manager, fn func(ctx context.Context, c *Client) (R, error), opts ...executor.CallOption) ([]executor.Outcome[*Client, R], error) {
	clients := m.Clients()
	if len(clients) == 0 {
		return []executor.Outcome[*Client, R]{}, nil
	}

	opts = append([]executor.CallOption{executor.WithRetryPolicy(m.policy)}, opts...)
	return executor.MapOutcomes(ctx, m.exec, executor.WorkFunc[*Client, R](fn), clients, opts...)
}

// Gather is ListAll with per-cluster failures reported instead of dropped.
// rows holds everything the healthy clusters returned; failed holds one
// error per cluster that could not be listed.
func Gather[R any](ctx context.Context, m *Manager, fetch FetchFunc[R], opts ...executor.CallOption) (rows []R, failed []error, err error) {
	outcomes, err := Query(ctx, m, func(ctx context.Context, c *Client) ([]R, error) {
		return fetch(ctx, c)
	}, opts...)
	if err != nil {
		return nil, nil, err
	}

	executor.SortByIndex(outcomes)
	rows = lo.Flatten(executor.Values(executor.FilterSuccessful(outcomes)))
	failed = lo.FilterMap(outcomes, func(o executor.Outcome[*Client, []R], _ int) (error, bool) {
		if o.Err == nil {
			return nil, false
		}
		return targetFailure(o.Item.Name, o.Err), true
	})

	return rows, failed, nil
}

// ListNamespaces lists every namespace in the cluster
func ListNamespaces(ctx context.Context, c *Client) ([]NamespaceInfo, error) {
	list, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, util.WrapTargetError(c.Name, fmt.Errorf("failed to list namespaces: %w", err))
	}

	now := time.Now()
	namespaces := make([]NamespaceInfo, 0, len(list.Items))
	for _, ns := range list.Items {
		namespaces = append(namespaces, NamespaceInfo{
			Cluster: c.Name,
			Name:    ns.Name,
			Status:  string(ns.Status.Phase),
			Age:     FormatAge(ns.CreationTimestamp.Time, now),
		})
	}

	return namespaces, nil
}

// ListPods lists pods in namespace ("" for all namespaces) matching selector
func ListPods(ctx context.Context, c *Client, namespace, selector string) ([]PodInfo, error) {
	list, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, util.WrapTargetError(c.Name, fmt.Errorf("failed to list pods: %w", err))
	}

	now := time.Now()
	pods := make([]PodInfo, 0, len(list.Items))
	for i := range list.Items {
		pod := &list.Items[i]
		pods = append(pods, PodInfo{
			Cluster:   c.Name,
			Namespace: pod.Namespace,
			Name:      pod.Name,
			Ready:     readyStatus(pod),
			Status:    string(pod.Status.Phase),
			Restarts:  restartCount(pod),
			Node:      pod.Spec.NodeName,
			Age:       FormatAge(pod.CreationTimestamp.Time, now),
		})
	}

	return pods, nil
}

// PodLister binds namespace and selector into a FetchFunc
func PodLister(namespace, selector string) FetchFunc[PodInfo] {
	return func(ctx context.Context, c *Client) ([]PodInfo, error) {
		return ListPods(ctx, c, namespace, selector)
	}
}

// ListNodes lists every node in the cluster
func ListNodes(ctx context.Context, c *Client) ([]NodeInfo, error) {
	list, err := c.Clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, util.WrapTargetError(c.Name, fmt.Errorf("failed to list nodes: %w", err))
	}

	now := time.Now()
	nodes := make([]NodeInfo, 0, len(list.Items))
	for i := range list.Items {
		node := &list.Items[i]
		nodes = append(nodes, NodeInfo{
			Cluster: c.Name,
			Name:    node.Name,
			Status:  nodeStatus(node),
			Roles:   nodeRoles(node),
			Version: node.Status.NodeInfo.KubeletVersion,
			Age:     FormatAge(node.CreationTimestamp.Time, now),
		})
	}

	return nodes, nil
}

// FormatAge renders the time since created the way kubectl does: 45s, 12m, 3h, 9d
func FormatAge(created, now time.Time) string {
	if created.IsZero() {
		return "<unknown>"
	}

	d := now.Sub(created)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func readyStatus(pod *corev1.Pod) string {
	ready := lo.CountBy(pod.Status.ContainerStatuses, func(cs corev1.ContainerStatus) bool {
		return cs.Ready
	})
	return fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers))
}

func restartCount(pod *corev1.Pod) int32 {
	return lo.SumBy(pod.Status.ContainerStatuses, func(cs corev1.ContainerStatus) int32 {
		return cs.RestartCount
	})
}

func nodeStatus(node *corev1.Node) string {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady {
			if condition.Status == corev1.ConditionTrue {
				return "Ready"
			}
			return "NotReady"
		}
	}
	return "Unknown"
}

func nodeRoles(node *corev1.Node) string {
	var roles []string
	for key := range node.Labels {
		if role, ok := strings.CutPrefix(key, nodeRolePrefix); ok && role != "" {
			roles = append(roles, role)
		}
	}

	if len(roles) == 0 {
		return "<none>"
	}

	sort.Strings(roles)
	return strings.Join(roles, ",")
}
