package cluster

import (
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Client represents a connection to a single Kubernetes cluster
type Client struct {
	// Name is a friendly identifier for the cluster
	Name string

	// Context is the kubeconfig context name
	Context string

	// Clientset is the Kubernetes client interface
	Clientset kubernetes.Interface

	// RestConfig is the underlying REST configuration; nil for injected clientsets
	RestConfig *rest.Config
}

// HealthStatus represents the health status of a cluster
type HealthStatus struct {
	// Cluster is the name of the cluster
	Cluster string `json:"cluster" yaml:"cluster"`

	// Healthy indicates if the API server answered
	Healthy bool `json:"healthy" yaml:"healthy"`

	// Error contains any health check error
	Error error `json:"-" yaml:"-"`

	// ServerVersion is the Kubernetes server version (if healthy)
	ServerVersion string `json:"serverVersion,omitempty" yaml:"serverVersion,omitempty"`

	// Attempts is the number of requests made, retries included
	Attempts int `json:"attempts" yaml:"attempts"`

	// Latency covers every attempt and backoff wait
	Latency time.Duration `json:"latency" yaml:"latency"`
}

// NamespaceInfo is one namespace row in a cross-cluster listing
type NamespaceInfo struct {
	Cluster string `json:"cluster" yaml:"cluster"`
	Name    string `json:"name" yaml:"name"`
	Status  string `json:"status" yaml:"status"`
	Age     string `json:"age" yaml:"age"`
}

// PodInfo is one pod row in a cross-cluster listing
type PodInfo struct {
	Cluster   string `json:"cluster" yaml:"cluster"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Ready     string `json:"ready" yaml:"ready"`
	Status    string `json:"status" yaml:"status"`
	Restarts  int32  `json:"restarts" yaml:"restarts"`
	Node      string `json:"node,omitempty" yaml:"node,omitempty"`
	Age       string `json:"age" yaml:"age"`
}

// NodeInfo is one node row in a cross-cluster listing
type NodeInfo struct {
	Cluster string `json:"cluster" yaml:"cluster"`
	Name    string `json:"name" yaml:"name"`
	Status  string `json:"status" yaml:"status"`
	Roles   string `json:"roles" yaml:"roles"`
	Version string `json:"version" yaml:"version"`
	Age     string `json:"age" yaml:"age"`
}

// DeploymentInfo is one deployment row in a cross-cluster listing
type DeploymentInfo struct {
	Cluster   string `json:"cluster" yaml:"cluster"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Ready     string `json:"ready" yaml:"ready"`
	UpToDate  int32  `json:"upToDate" yaml:"upToDate"`
	Available int32  `json:"available" yaml:"available"`
	Age       string `json:"age" yaml:"age"`
}

// ServiceInfo is one service row in a cross-cluster listing
type ServiceInfo struct {
	Cluster    string `json:"cluster" yaml:"cluster"`
	Namespace  string `json:"namespace" yaml:"namespace"`
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	ClusterIP  string `json:"clusterIP" yaml:"clusterIP"`
	ExternalIP string `json:"externalIP" yaml:"externalIP"`
	Ports      string `json:"ports" yaml:"ports"`
	Age        string `json:"age" yaml:"age"`
}
