package topology

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/vanshmadan/gke-connect/internal/classifier"
	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/models"
)

func constClassifier(category string) classifier.Classifier {
	return classifier.Func(func(context.Context, string, string) (string, error) { return category, nil })
}

func TestBuild_WebScenario(t *testing.T) {
	snap := &k8s.Snapshot{
		Namespace:   "staging",
		Services:    []corev1.Service{service("web", map[string]string{"app": "web"}, corev1.ServicePort{Port: 80, Protocol: corev1.ProtocolTCP})},
		Deployments: []appsv1.Deployment{deployment("web-deploy", map[string]string{"app": "web"}, map[string]string{"app": "web", "pod": "web"}, "nginx:1.27", 1)},
		Pods: []corev1.Pod{
			pod("web-deploy-abc", map[string]string{"app": "web", "pod": "web"}, corev1.PodRunning),
			pod("debug-shell", map[string]string{"run": "debug"}, corev1.PodRunning),
		},
	}

	nodes, err := NewBuilder(classifier.Heuristic{}).Build(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	web := nodes[0]
	assert.Equal(t, models.KindService, web.Kind)
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, StatusActive, web.Status)
	assert.Equal(t, []string{"80/TCP"}, web.Ports)
	assert.Equal(t, "10.0.0.10", web.ClusterIP)
	assert.Equal(t, classifier.Frontend, web.Category)
	require.Len(t, web.Associated, 1)

	deploy := web.Associated[0]
	assert.Equal(t, models.KindDeployment, deploy.Kind)
	assert.Equal(t, "web-deploy", deploy.Name)
	assert.Equal(t, StatusAvailable, deploy.Status)
	assert.Empty(t, deploy.Category)
	require.Len(t, deploy.Associated, 1)
	assert.Equal(t, "web-deploy-abc", deploy.Associated[0].Name)
	assert.Equal(t, models.KindPod, deploy.Associated[0].Kind)

	debug := nodes[1]
	assert.Equal(t, models.KindPod, debug.Kind)
	assert.Equal(t, "debug-shell", debug.Name)
	assert.Equal(t, "Running", debug.Status)
	assert.Equal(t, classifier.Unknown, debug.Category)
	assert.Empty(t, debug.Associated)
}

func TestBuild_ClassifierFailuresBecomeUnknown(t *testing.T) {
	tests := []struct {
		name string
		c    classifier.Classifier
	}{
		{"error", classifier.Func(func(context.Context, string, string) (string, error) {
			return "", errors.New("model crashed")
		})},
		{"panic", classifier.Func(func(context.Context, string, string) (string, error) {
			panic("index out of range")
		})},
		{"timeout", classifier.Func(func(ctx context.Context, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})},
		{"hang ignoring context", classifier.Func(func(context.Context, string, string) (string, error) {
			time.Sleep(time.Second)
			return classifier.API, nil
		})},
		{"out of set", constClassifier("Database")},
		{"empty", constClassifier("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &k8s.Snapshot{
				Namespace: "staging",
				Services:  []corev1.Service{service("mystery-svc", map[string]string{"app": "mystery"})},
				Pods:      []corev1.Pod{pod("worker-1", map[string]string{"app": "other"}, corev1.PodRunning)},
			}
			b := NewBuilder(tt.c, WithClassifyTimeout(20*time.Millisecond))

			nodes, err := b.Build(context.Background(), snap)
			require.NoError(t, err)
			require.Len(t, nodes, 2)
			assert.Equal(t, "mystery-svc", nodes[0].Name)
			assert.Equal(t, classifier.Unknown, nodes[0].Category)
			assert.Equal(t, "worker-1", nodes[1].Name)
			assert.Equal(t, classifier.Unknown, nodes[1].Category)
		})
	}
}

func TestBuild_ClaimPrecedence(t *testing.T) {
	shared := map[string]string{"app": "shop"}
	snap := &k8s.Snapshot{
		Namespace: "staging",
		Services: []corev1.Service{
			service("shop-b", shared),
			service("shop-a", shared),
		},
		Deployments: []appsv1.Deployment{deployment("shop", shared, shared, "shop:1", 0)},
		Pods: []corev1.Pod{
			pod("shop-1", shared, corev1.PodRunning),
			pod("shop-2", shared, corev1.PodPending),
		},
	}

	nodes, err := NewBuilder(constClassifier(classifier.API)).Build(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	// shop-a sorts first and claims the Deployment and, through it, both Pods.
	assert.Equal(t, "shop-a", nodes[0].Name)
	require.Len(t, nodes[0].Associated, 1)
	assert.Equal(t, "shop", nodes[0].Associated[0].Name)
	assert.Equal(t, StatusPending, nodes[0].Associated[0].Status)
	require.Len(t, nodes[0].Associated[0].Associated, 2)
	assert.Equal(t, "shop-1", nodes[0].Associated[0].Associated[0].Name)
	assert.Equal(t, "shop-2", nodes[0].Associated[0].Associated[1].Name)

	assert.Equal(t, "shop-b", nodes[1].Name)
	assert.Empty(t, nodes[1].Associated)
}

func TestBuild_ServiceOrderWithinService(t *testing.T) {
	lbl := map[string]string{"app": "db"}
	snap := &k8s.Snapshot{
		Namespace:    "staging",
		Services:     []corev1.Service{service("db", lbl)},
		Deployments:  []appsv1.Deployment{deployment("db-proxy", lbl, map[string]string{"role": "proxy"}, "pgbouncer:1", 1)},
		StatefulSets: []appsv1.StatefulSet{statefulSet("postgres", lbl, map[string]string{"role": "primary"}, "postgres:16", 1)},
		Pods: []corev1.Pod{
			pod("postgres-0", map[string]string{"app": "db", "role": "primary"}, corev1.PodRunning, "data-postgres-0"),
			pod("db-proxy-x", map[string]string{"app": "db", "role": "proxy"}, corev1.PodRunning),
			pod("db-adhoc", map[string]string{"app": "db"}, corev1.PodSucceeded),
		},
	}

	nodes, err := NewBuilder(constClassifier(classifier.DB)).Build(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	children := nodes[0].Associated
	require.Len(t, children, 3)
	assert.Equal(t, models.KindDeployment, children[0].Kind)
	assert.Equal(t, "db-proxy", children[0].Name)
	assert.Equal(t, "db-proxy-x", children[0].Associated[0].Name)
	assert.Equal(t, models.KindStatefulSet, children[1].Kind)
	assert.Equal(t, "postgres", children[1].Name)
	require.Len(t, children[1].Associated, 1)
	assert.Equal(t, []string{"data-postgres-0"}, children[1].Associated[0].PersistentVolumeClaims)
	assert.Equal(t, models.KindPod, children[2].Kind)
	assert.Equal(t, "db-adhoc", children[2].Name)
	assert.Equal(t, "Succeeded", children[2].Status)
}

func TestBuild_Orphans(t *testing.T) {
	var gotImages []string
	c := classifier.Func(func(_ context.Context, name, image string) (string, error) {
		gotImages = append(gotImages, name+"="+image)
		return classifier.Worker, nil
	})
	snap := &k8s.Snapshot{
		Namespace:    "staging",
		Services:     []corev1.Service{service("headless", nil)},
		Deployments:  []appsv1.Deployment{deployment("jobs", nil, map[string]string{"app": "jobs"}, "ghcr.io/acme/jobs:2", 1)},
		StatefulSets: []appsv1.StatefulSet{statefulSet("queue", nil, map[string]string{"app": "queue"}, "rabbitmq:3", 0)},
		Pods: []corev1.Pod{
			pod("queue-0", map[string]string{"app": "queue"}, corev1.PodRunning),
			pod("jobs-1", map[string]string{"app": "jobs"}, corev1.PodRunning),
			pod("stray", nil, ""),
		},
	}

	nodes, err := NewBuilder(c).Build(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	assert.Equal(t, "headless", nodes[0].Name)
	assert.Empty(t, nodes[0].Associated, "empty selector matches nothing")
	assert.Equal(t, "jobs", nodes[1].Name)
	assert.Equal(t, "jobs-1", nodes[1].Associated[0].Name)
	assert.Equal(t, "queue", nodes[2].Name)
	assert.Equal(t, StatusPending, nodes[2].Status)
	assert.Equal(t, "queue-0", nodes[2].Associated[0].Name)
	assert.Equal(t, "stray", nodes[3].Name)
	assert.Equal(t, StatusUnknown, nodes[3].Status)

	assert.Equal(t, []string{
		"headless=",
		"jobs=ghcr.io/acme/jobs:2",
		"queue=rabbitmq:3",
		"stray=busybox:1.36",
	}, gotImages)
}

func TestBuild_ServicePortsDefaultTCP(t *testing.T) {
	snap := &k8s.Snapshot{
		Namespace: "staging",
		Services: []corev1.Service{service("dns", nil,
			corev1.ServicePort{Port: 53, Protocol: corev1.ProtocolUDP},
			corev1.ServicePort{Port: 9153},
		)},
	}
	nodes, err := NewBuilder(nil).Build(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"53/UDP", "9153/TCP"}, nodes[0].Ports)
}

func TestBuild_EmptySnapshot(t *testing.T) {
	nodes, err := NewBuilder(nil).Build(context.Background(), &k8s.Snapshot{Namespace: "empty"})
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestBuild_NilSnapshot(t *testing.T) {
	_, err := NewBuilder(nil).Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilSnapshot)
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := &k8s.Snapshot{Namespace: "staging", Pods: []corev1.Pod{pod("a", nil, corev1.PodRunning)}}

	nodes, err := NewBuilder(nil).Build(ctx, snap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, nodes)
}

func TestBuild_CancelledDuringClassification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := classifier.Func(func(ctx context.Context, _, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	snap := &k8s.Snapshot{Namespace: "staging", Pods: []corev1.Pod{pod("last", nil, corev1.PodRunning)}}

	nodes, err := NewBuilder(c).Build(ctx, snap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, nodes, "no partial tree")
}

// randomSnapshot generates a namespace whose labels overlap heavily so claims collide.
func randomSnapshot(r *rand.Rand) *k8s.Snapshot {
	apps := []string{"web", "api", "db", "cache"}
	pick := func() map[string]string {
		l := map[string]string{"app": apps[r.Intn(len(apps))]}
		if r.Intn(2) == 0 {
			l["tier"] = fmt.Sprint(r.Intn(2))
		}
		return l
	}
	snap := &k8s.Snapshot{Namespace: "prop"}
	for i := 0; i < r.Intn(4); i++ {
		var sel map[string]string
		if r.Intn(5) > 0 {
			sel = pick()
		}
		snap.Services = append(snap.Services, service(fmt.Sprintf("svc-%d", i), sel))
	}
	for i := 0; i < r.Intn(4); i++ {
		snap.Deployments = append(snap.Deployments, deployment(fmt.Sprintf("deploy-%d", i), pick(), pick(), "img", int32(r.Intn(2))))
	}
	for i := 0; i < r.Intn(3); i++ {
		snap.StatefulSets = append(snap.StatefulSets, statefulSet(fmt.Sprintf("sts-%d", i), pick(), pick(), "img", int32(r.Intn(2))))
	}
	for i := 0; i < r.Intn(10); i++ {
		snap.Pods = append(snap.Pods, pod(fmt.Sprintf("pod-%d", i), pick(), corev1.PodRunning))
	}
	return snap
}

func shuffled(r *rand.Rand, snap *k8s.Snapshot) *k8s.Snapshot {
	cp := &k8s.Snapshot{
		Namespace:    snap.Namespace,
		Services:     append([]corev1.Service(nil), snap.Services...),
		Deployments:  append([]appsv1.Deployment(nil), snap.Deployments...),
		StatefulSets: append([]appsv1.StatefulSet(nil), snap.StatefulSets...),
		Pods:         append([]corev1.Pod(nil), snap.Pods...),
	}
	r.Shuffle(len(cp.Services), func(i, j int) { cp.Services[i], cp.Services[j] = cp.Services[j], cp.Services[i] })
	r.Shuffle(len(cp.Deployments), func(i, j int) { cp.Deployments[i], cp.Deployments[j] = cp.Deployments[j], cp.Deployments[i] })
	r.Shuffle(len(cp.StatefulSets), func(i, j int) { cp.StatefulSets[i], cp.StatefulSets[j] = cp.StatefulSets[j], cp.StatefulSets[i] })
	r.Shuffle(len(cp.Pods), func(i, j int) { cp.Pods[i], cp.Pods[j] = cp.Pods[j], cp.Pods[i] })
	return cp
}

func TestBuild_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	b := NewBuilder(classifier.Heuristic{})

	for i := 0; i < 300; i++ {
		snap := randomSnapshot(r)
		nodes, err := b.Build(context.Background(), snap)
		require.NoError(t, err)

		// At most once.
		require.NoError(t, ValidateTree(nodes))

		// Nothing silently dropped.
		counts := Count(nodes)
		assert.Equal(t, len(snap.Services), counts[models.KindService])
		assert.Equal(t, len(snap.Deployments), counts[models.KindDeployment])
		assert.Equal(t, len(snap.StatefulSets), counts[models.KindStatefulSet])
		assert.Equal(t, len(snap.Pods), counts[models.KindPod])

		// Input order does not matter.
		again, err := b.Build(context.Background(), shuffled(r, snap))
		require.NoError(t, err)
		assert.Equal(t, nodes, again)

		// Category only on top-level nodes, always from the category set.
		for _, n := range nodes {
			assert.True(t, classifier.Valid(n.Category), n.Category)
		}
	}
}
