package get

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aryankumar/fanout/internal/cli/clitest"
	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	"github.com/aryankumar/fanout/internal/cluster"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8stesting "k8s.io/client-go/testing"
)

func createTestPod(name, namespace string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         namespace,
			Labels:            labels,
			CreationTimestamp: metav1.NewTime(time.Now().Add(-1 * time.Hour)),
		},
		Spec: corev1.PodSpec{
			NodeName:   "node-1",
			Containers: []corev1.Container{{Name: "app"}},
		},
		Status: corev1.PodStatus{
			Phase:             corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{Name: "app", Ready: true}},
		},
	}
}

func createTestNamespace(name string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			CreationTimestamp: metav1.NewTime(time.Now().Add(-48 * time.Hour)),
		},
		Status: corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
	}
}

func createTestDeployment(name, namespace string, replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: replicas},
	}
}

// runGet executes the get command with rt in its context
func runGet(t *testing.T, rt *cmdutil.Runtime, args ...string) (string, error) {
	t.Helper()
	return runGetContext(t, context.Background(), rt, args...)
}

func runGetContext(t *testing.T, ctx context.Context, rt *cmdutil.Runtime, args ...string) (string, error) {
	t.Helper()

	cmd := NewGetCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(cmdutil.WithRuntime(ctx, rt))
	return out.String(), err
}

func TestGetCommand(t *testing.T) {
	cmd := NewGetCmd()

	expected := []string{"pods", "nodes", "deployments", "services", "namespaces"}
	for _, name := range expected {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestGetNamespaces_Table(t *testing.T) {
	rt, _ := clitest.NewRuntime(t,
		clitest.FakeClient("prod-east", createTestNamespace("default"), createTestNamespace("payments")),
		clitest.FakeClient("prod-west", createTestNamespace("default")))

	out, err := runGet(t, rt, "namespaces")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"CLUSTER", "NAME", "STATUS", "prod-east", "prod-west", "payments", "Active", "2d",
		"Total: 3 namespaces across 2 clusters"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	// rows are ordered by cluster then name
	if strings.Index(out, "payments") > strings.Index(out, "prod-west") {
		t.Errorf("expected prod-east rows before prod-west rows:\n%s", out)
	}
}

func TestGetPods_JSON(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantNames []string
	}{
		{
			name:      "default namespace",
			args:      []string{"pods"},
			wantNames: []string{"web-1", "web-2"},
		},
		{
			name:      "specific namespace",
			args:      []string{"pods", "-n", "kube-system"},
			wantNames: []string{"dns"},
		},
		{
			name:      "all namespaces",
			args:      []string{"pods", "-A"},
			wantNames: []string{"web-1", "web-2", "dns"},
		},
		{
			name:      "label selector",
			args:      []string{"pods", "-A", "-l", "app=web"},
			wantNames: []string{"web-1", "web-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _ := clitest.NewRuntime(t,
				clitest.FakeClient("east",
					createTestPod("web-1", "default", map[string]string{"app": "web"}),
					createTestPod("dns", "kube-system", map[string]string{"app": "dns"})),
				clitest.FakeClient("west",
					createTestPod("web-2", "default", map[string]string{"app": "web"})))
			rt.Config.Defaults.OutputFormat = "json"

			out, err := runGet(t, rt, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var pods []cluster.PodInfo
			if err := json.Unmarshal([]byte(out), &pods); err != nil {
				t.Fatalf("output is not a JSON pod list: %v\n%s", err, out)
			}

			got := make(map[string]bool, len(pods))
			for _, p := range pods {
				got[p.Name] = true
				if p.Ready != "1/1" || p.Status != "Running" {
					t.Errorf("unexpected pod row %+v", p)
				}
			}
			if len(pods) != len(tt.wantNames) {
				t.Fatalf("got %d pods, want %d: %+v", len(pods), len(tt.wantNames), pods)
			}
			for _, name := range tt.wantNames {
				if !got[name] {
					t.Errorf("expected pod %q in output", name)
				}
			}
		})
	}
}

func TestGetDeployments_Empty(t *testing.T) {
	rt, _ := clitest.NewRuntime(t, clitest.FakeClient("dev"))

	out, err := runGet(t, rt, "deployments")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "No deployments found" {
		t.Errorf("got %q", out)
	}
}

func TestGetDeployments_YAML(t *testing.T) {
	rt, _ := clitest.NewRuntime(t, clitest.FakeClient("dev", createTestDeployment("api", "default", 2)))
	rt.Config.Defaults.OutputFormat = "yaml"

	out, err := runGet(t, rt, "deploy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"cluster: dev", "name: api", "ready: 2/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestGet_RetriesTransientFailures(t *testing.T) {
	flaky := clitest.FakeClient("flaky", createTestNamespace("default"))
	reaction, calls := clitest.FailTimes(2, apierrors.NewServiceUnavailable("etcd leader changed"))
	clitest.Clientset(flaky).PrependReactor("list", "namespaces", reaction)

	rt, _ := clitest.NewRuntime(t, flaky)

	out, err := runGet(t, rt, "ns")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Total: 1 namespaces across 1 cluster") {
		t.Errorf("expected the retried cluster to be listed, got:\n%s", out)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 list calls, got %d", calls.Load())
	}
}

func TestGet_FailingCluster(t *testing.T) {
	forbidden := apierrors.NewForbidden(schema.GroupResource{Resource: "nodes"}, "", errors.New("rbac: access denied"))

	setup := func(t *testing.T) (*cmdutil.Runtime, *clitest.SyncBuffer) {
		denied := clitest.FakeClient("denied")
		reaction, _ := clitest.FailTimes(100, forbidden)
		clitest.Clientset(denied).PrependReactor("list", "nodes", reaction)

		healthy := clitest.FakeClient("healthy", &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
		})

		return clitest.NewRuntime(t, denied, healthy)
	}

	t.Run("skipped by default", func(t *testing.T) {
		rt, logs := setup(t)

		out, err := runGet(t, rt, "nodes")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "node-1") || strings.Contains(out, "denied") {
			t.Errorf("expected only the healthy cluster, got:\n%s", out)
		}
		if !strings.Contains(logs.String(), "cluster skipped") || !strings.Contains(logs.String(), "denied") {
			t.Errorf("expected a warning naming the skipped cluster, got:\n%s", logs.String())
		}
	})

	t.Run("strict fails", func(t *testing.T) {
		rt, _ := setup(t)
		rt.Strict = true

		_, err := runGet(t, rt, "nodes")
		if err == nil {
			t.Fatal("expected error in strict mode")
		}
		if !apierrors.IsForbidden(err) {
			t.Errorf("expected forbidden error, got %v", err)
		}
	})
}

func TestGet_TimeoutIsAnError(t *testing.T) {
	slow := clitest.FakeClient("slow")
	clitest.Clientset(slow).PrependReactor("list", "nodes", func(k8stesting.Action) (bool, runtime.Object, error) {
		time.Sleep(100 * time.Millisecond)
		return true, nil, apierrors.NewServiceUnavailable("overloaded")
	})
	fast := clitest.FakeClient("fast", &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
	})

	rt, _ := clitest.NewRuntime(t, slow, fast)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, err := runGetContext(t, ctx, rt, "nodes")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if strings.Contains(out, "Total:") || strings.Contains(out, "node-1") {
		t.Errorf("a timed-out listing must not print a table, got:\n%s", out)
	}
}

func TestNamespaceFlags_Resolve(t *testing.T) {
	tests := []struct {
		name  string
		flags namespaceFlags
		want  string
	}{
		{name: "default", flags: namespaceFlags{}, want: "default"},
		{name: "explicit", flags: namespaceFlags{namespace: "kube-system"}, want: "kube-system"},
		{name: "all namespaces wins", flags: namespaceFlags{namespace: "kube-system", allNamespaces: true}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.resolve(); got != tt.want {
				t.Errorf("resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPodTable_Wide(t *testing.T) {
	pods := []cluster.PodInfo{
		{Cluster: "east", Namespace: "default", Name: "web-1", Ready: "1/1", Status: "Running", Node: "node-a", Age: "1h"},
	}

	narrow := podTable(pods, false)
	if len(narrow.Headers) != 7 || len(narrow.Rows[0]) != 7 {
		t.Errorf("expected 7 columns, got %v", narrow.Headers)
	}

	wide := podTable(pods, true)
	if wide.Headers[len(wide.Headers)-1] != "NODE" || wide.Rows[0][7] != "node-a" {
		t.Errorf("expected trailing NODE column, got %v %v", wide.Headers, wide.Rows[0])
	}
	if wide.Footer != "Total: 1 pods across 1 cluster" {
		t.Errorf("unexpected footer %q", wide.Footer)
	}
}
