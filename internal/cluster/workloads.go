package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aryankumar/fanout/internal/util"
	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ListDeployments lists deployments in namespace ("" for all namespaces)
func ListDeployments(ctx context.Context, c *Client, namespace string) ([]DeploymentInfo, error) {
	list, err := c.Clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, util.WrapTargetError(c.Name, fmt.Errorf("failed to list deployments: %w", err))
	}

	now := time.Now()
	deployments := make([]DeploymentInfo, 0, len(list.Items))
	for i := range list.Items {
		deploy := &list.Items[i]
		deployments = append(deployments, DeploymentInfo{
			Cluster:   c.Name,
			Namespace: deploy.Namespace,
			Name:      deploy.Name,
			Ready:     deploymentReady(deploy),
			UpToDate:  deploy.Status.UpdatedReplicas,
			Available: deploy.Status.AvailableReplicas,
			Age:       FormatAge(deploy.CreationTimestamp.Time, now),
		})
	}

	return deployments, nil
}

// DeploymentLister binds namespace into a FetchFunc
func DeploymentLister(namespace string) FetchFunc[DeploymentInfo] {
	return func(ctx context.Context, c *Client) ([]DeploymentInfo, error) {
		return ListDeployments(ctx, c, namespace)
	}
}

// ListServices lists services in namespace ("" for all namespaces)
func ListServices(ctx context.Context, c *Client, namespace string) ([]ServiceInfo, error) {
	list, err := c.Clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, util.WrapTargetError(c.Name, fmt.Errorf("failed to list services: %w", err))
	}

	now := time.Now()
	services := make([]ServiceInfo, 0, len(list.Items))
	for i := range list.Items {
		svc := &list.Items[i]
		services = append(services, ServiceInfo{
			Cluster:    c.Name,
			Namespace:  svc.Namespace,
			Name:       svc.Name,
			Type:       string(svc.Spec.Type),
			ClusterIP:  svc.Spec.ClusterIP,
			ExternalIP: externalIP(svc),
			Ports:      servicePorts(svc),
			Age:        FormatAge(svc.CreationTimestamp.Time, now),
		})
	}

	return services, nil
}

// ServiceLister binds namespace into a FetchFunc
func ServiceLister(namespace string) FetchFunc[ServiceInfo] {
	return func(ctx context.Context, c *Client) ([]ServiceInfo, error) {
		return ListServices(ctx, c, namespace)
	}
}

func deploymentReady(deploy *appsv1.Deployment) string {
	var desired int32
	if deploy.Spec.Replicas != nil {
		desired = *deploy.Spec.Replicas
	}
	return fmt.Sprintf("%d/%d", deploy.Status.ReadyReplicas, desired)
}

func externalIP(svc *corev1.Service) string {
	switch svc.Spec.Type {
	case corev1.ServiceTypeLoadBalancer:
		addrs := lo.FilterMap(svc.Status.LoadBalancer.Ingress, func(in corev1.LoadBalancerIngress, _ int) (string, bool) {
			if in.IP != "" {
				return in.IP, true
			}
			return in.Hostname, in.Hostname != ""
		})
		if len(addrs) == 0 {
			return "<pending>"
		}
		return strings.Join(addrs, ",")
	case corev1.ServiceTypeExternalName:
		return svc.Spec.ExternalName
	}

	if len(svc.Spec.ExternalIPs) > 0 {
		return strings.Join(svc.Spec.ExternalIPs, ",")
	}
	return "<none>"
}

// servicePorts renders ports as kubectl does: 80/TCP is shown as 80, node ports as 80:30080
func servicePorts(svc *corev1.Service) string {
	if len(svc.Spec.Ports) == 0 {
		return "<none>"
	}

	ports := lo.Map(svc.Spec.Ports, func(p corev1.ServicePort, _ int) string {
		s := fmt.Sprintf("%d", p.Port)
		if p.NodePort != 0 {
			s = fmt.Sprintf("%d:%d", p.Port, p.NodePort)
		}
		if p.Protocol != "" && p.Protocol != corev1.ProtocolTCP {
			s = fmt.Sprintf("%s/%s", s, p.Protocol)
		}
		return s
	})
	return strings.Join(ports, ",")
}
