package k8s

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/vanshmadan/gke-connect/internal/pkg/metrics"
	"github.com/vanshmadan/gke-connect/internal/pkg/tracing"
)

// Snapshot is the point-in-time content of one namespace that a topology is built from.
type Snapshot struct {
	Namespace    string
	Services     []corev1.Service
	Deployments  []appsv1.Deployment
	StatefulSets []appsv1.StatefulSet
	Pods         []corev1.Pod
	// PodsResourceVersion is the list resource version of Pods; a pod watch resumes from it.
	PodsResourceVersion string
}

// SnapshotSource lists the namespace-scoped objects of a topology and watches its pods.
type SnapshotSource interface {
	ListServices(ctx context.Context, namespace string) ([]corev1.Service, error)
	ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error)
	ListStatefulSets(ctx context.Context, namespace string) ([]appsv1.StatefulSet, error)
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, string, error)
	WatchPods(ctx context.Context, namespace, resourceVersion string) (watch.Interface, error)
}

var _ SnapshotSource = (*Client)(nil)

// FetchSnapshot lists the four kinds of namespace concurrently. Any failure fails the whole snapshot.
func FetchSnapshot(ctx context.Context, src SnapshotSource, namespace string) (*Snapshot, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "k8s.FetchSnapshot", tracing.AttrNamespace.String(namespace))
	defer span.End()
	start := time.Now()
	defer func() { metrics.SnapshotListDurationSeconds.Observe(time.Since(start).Seconds()) }()

	snap := &Snapshot{Namespace: namespace}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := src.ListServices(gctx, namespace)
		if err != nil {
			return fmt.Errorf("failed to list services in %s: %w", namespace, err)
		}
		snap.Services = items
		return nil
	})
	g.Go(func() error {
		items, err := src.ListDeployments(gctx, namespace)
		if err != nil {
			return fmt.Errorf("failed to list deployments in %s: %w", namespace, err)
		}
		snap.Deployments = items
		return nil
	})
	g.Go(func() error {
		items, err := src.ListStatefulSets(gctx, namespace)
		if err != nil {
			return fmt.Errorf("failed to list statefulsets in %s: %w", namespace, err)
		}
		snap.StatefulSets = items
		return nil
	})
	g.Go(func() error {
		items, rv, err := src.ListPods(gctx, namespace)
		if err != nil {
			return fmt.Errorf("failed to list pods in %s: %w", namespace, err)
		}
		snap.Pods = items
		snap.PodsResourceVersion = rv
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return snap, nil
}

// ListServices lists the Services of namespace.
func (c *Client) ListServices(ctx context.Context, namespace string) ([]corev1.Service, error) {
	return call(ctx, c, func(ctx context.Context) ([]corev1.Service, error) {
		list, err := c.Clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
}

// ListDeployments lists the Deployments of namespace.
func (c *Client) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	return call(ctx, c, func(ctx context.Context) ([]appsv1.Deployment, error) {
		list, err := c.Clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
}

// ListStatefulSets lists the StatefulSets of namespace.
func (c *Client) ListStatefulSets(ctx context.Context, namespace string) ([]appsv1.StatefulSet, error) {
	return call(ctx, c, func(ctx context.Context) ([]appsv1.StatefulSet, error) {
		list, err := c.Clientset.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
}

type podList struct {
	items           []corev1.Pod
	resourceVersion string
}

// ListPods lists the Pods of namespace and returns the list resource version.
func (c *Client) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, string, error) {
	list, err := call(ctx, c, func(ctx context.Context) (podList, error) {
		list, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return podList{}, err
		}
		return podList{items: list.Items, resourceVersion: list.ResourceVersion}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return list.items, list.resourceVersion, nil
}

// WatchPods opens a pod watch on namespace starting at resourceVersion. The watch lives
// until ctx is done or the caller stops it; the client timeout does not apply. A failed
// open is not retried: the subscriber gets the error and may resubscribe.
func (c *Client) WatchPods(ctx context.Context, namespace, resourceVersion string) (watch.Interface, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}
	var w watch.Interface
	err := c.circuitBreaker.Execute(ctx, func() error {
		var fnErr error
		w, fnErr = c.Clientset.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{
			ResourceVersion: resourceVersion,
		})
		return fnErr
	})
	c.updateHealth(err)
	if err != nil {
		return nil, err
	}
	return w, nil
}
