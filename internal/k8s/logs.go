package k8s

import (
	"context"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// controllerOwnerKinds are the owner kinds whose name identifies a controller for log lookup.
var controllerOwnerKinds = map[string]bool{
	"Deployment":  true,
	"StatefulSet": true,
	"ReplicaSet":  true,
	"CronJob":     true,
	"Job":         true,
	"DaemonSet":   true,
}

// ControllerPods returns the pods of namespace owned by controller, either directly or
// through a ReplicaSet the controller owns (Deployment rollouts). Sorted by name.
func (c *Client) ControllerPods(ctx context.Context, namespace, controller string) ([]corev1.Pod, error) {
	pods, _, err := c.ListPods(ctx, namespace)
	if err != nil {
		return nil, err
	}
	replicaSets, err := call(ctx, c, func(ctx context.Context) ([]string, error) {
		list, err := c.Clientset.AppsV1().ReplicaSets(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, err
		}
		var names []string
		for _, rs := range list.Items {
			if ownedBy(rs.OwnerReferences, controller) {
				names = append(names, rs.Name)
			}
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}

	var matched []corev1.Pod
	for _, pod := range pods {
		if ownedBy(pod.OwnerReferences, controller) || ownedByAny(pod.OwnerReferences, "ReplicaSet", replicaSets) {
			matched = append(matched, pod)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, nil
}

func ownedBy(refs []metav1.OwnerReference, controller string) bool {
	for _, ref := range refs {
		if ref.Name == controller && controllerOwnerKinds[ref.Kind] {
			return true
		}
	}
	return false
}

func ownedByAny(refs []metav1.OwnerReference, kind string, names []string) bool {
	for _, ref := range refs {
		if ref.Kind != kind {
			continue
		}
		for _, n := range names {
			if ref.Name == n {
				return true
			}
		}
	}
	return false
}

// PodLogs returns the last tailLines lines of the pod's default container log, with timestamps.
func (c *Client) PodLogs(ctx context.Context, namespace, pod string, tailLines int64) (string, error) {
	return call(ctx, c, func(ctx context.Context) (string, error) {
		raw, err := c.Clientset.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
			TailLines:  &tailLines,
			Timestamps: true,
		}).DoRaw(ctx)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	})
}
