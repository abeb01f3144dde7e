package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// RestartedAtAnnotation is the pod template annotation kubectl rollout restart sets.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// ScaleDeployment sets the replica count of a Deployment.
func (c *Client) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) (*appsv1.Deployment, error) {
	patch, err := json.Marshal(map[string]any{
		"spec": map[string]any{"replicas": replicas},
	})
	if err != nil {
		return nil, err
	}
	return c.patchDeployment(ctx, namespace, name, patch)
}

// RestartDeployment triggers a rolling restart by stamping the pod template with at.
func (c *Client) RestartDeployment(ctx context.Context, namespace, name string, at time.Time) (*appsv1.Deployment, error) {
	patch, err := json.Marshal(map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						RestartedAtAnnotation: at.UTC().Format(time.RFC3339),
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return c.patchDeployment(ctx, namespace, name, patch)
}

func (c *Client) patchDeployment(ctx context.Context, namespace, name string, patch []byte) (*appsv1.Deployment, error) {
	d, err := call(ctx, c, func(ctx context.Context) (*appsv1.Deployment, error) {
		return c.Clientset.AppsV1().Deployments(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to patch deployment %s/%s: %w", namespace, name, err)
	}
	return d, nil
}
