package k8s

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"
)

func deploymentFixture() *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "staging"},
		Spec:       appsv1.DeploymentSpec{Replicas: ptr.To[int32](3)},
	}
}

func TestScaleDeployment(t *testing.T) {
	client := NewClientForTest(fake.NewSimpleClientset(deploymentFixture()))

	d, err := client.ScaleDeployment(context.Background(), "staging", "web", 0)
	require.NoError(t, err)
	require.NotNil(t, d.Spec.Replicas)
	assert.Equal(t, int32(0), *d.Spec.Replicas)

	d, err = client.ScaleDeployment(context.Background(), "staging", "web", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), *d.Spec.Replicas)
}

func TestRestartDeployment(t *testing.T) {
	client := NewClientForTest(fake.NewSimpleClientset(deploymentFixture()))
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	d, err := client.RestartDeployment(context.Background(), "staging", "web", at)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:30:00Z", d.Spec.Template.Annotations[RestartedAtAnnotation])
	assert.Equal(t, int32(3), *d.Spec.Replicas)
}

func TestScaleDeployment_NotFound(t *testing.T) {
	client := NewClientForTest(fake.NewSimpleClientset())

	_, err := client.ScaleDeployment(context.Background(), "staging", "web", 1)
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
}
