// Package topology reconstructs the ownership tree of a namespace
// (Service → Deployment/StatefulSet → Pod, plus orphans) from a point-in-time snapshot.
package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vanshmadan/gke-connect/internal/classifier"
	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/metrics"
	"github.com/vanshmadan/gke-connect/internal/pkg/tracing"
)

// DefaultClassifyTimeout bounds a single classification.
const DefaultClassifyTimeout = 2 * time.Second

// ErrNilSnapshot is returned by Build when called without a snapshot.
var ErrNilSnapshot = errors.New("topology: nil snapshot")

// Status strings for non-Pod nodes.
const (
	StatusActive    = "Active"
	StatusAvailable = "Available"
	StatusPending   = "Pending"
	StatusUnknown   = "Unknown"
)

// Builder turns snapshots into resource trees. Safe for concurrent use;
// every Build has its own claim registry.
type Builder struct {
	classifier      classifier.Classifier
	logger          *slog.Logger
	classifyTimeout time.Duration
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for classification failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClassifyTimeout bounds each classifier call. d <= 0 keeps the default.
func WithClassifyTimeout(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.classifyTimeout = d
		}
	}
}

// NewBuilder returns a Builder classifying top-level nodes with c.
// A nil c falls back to keyword rules.
func NewBuilder(c classifier.Classifier, opts ...Option) *Builder {
	if c == nil {
		c = classifier.Heuristic{}
	}
	b := &Builder{
		classifier:      c,
		logger:          slog.Default(),
		classifyTimeout: DefaultClassifyTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the top-level nodes of snap in precedence order: Services, then
// unclaimed Deployments, unclaimed StatefulSets and unclaimed Pods, each group sorted
// by name. A resource appears at most once; the first claim wins. A cancelled ctx
// aborts the build with the context error.
func (b *Builder) Build(ctx context.Context, snap *k8s.Snapshot) ([]models.ResourceNode, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	ctx, span := tracing.StartSpanWithAttributes(ctx, "topology.Build", tracing.AttrNamespace.String(snap.Namespace))
	defer span.End()
	start := time.Now()

	nodes, err := b.build(ctx, snap)
	metrics.TopologyBuildDurationSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.TopologyBuildsTotal.WithLabelValues("ok").Inc()
		span.SetAttributes(tracing.AttrNodeCount.Int(len(nodes)))
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.TopologyBuildsTotal.WithLabelValues("canceled").Inc()
	default:
		metrics.TopologyBuildsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
	}
	return nodes, err
}

func (b *Builder) build(ctx context.Context, snap *k8s.Snapshot) ([]models.ResourceNode, error) {
	services := sortedByName(snap.Services)
	deployments := sortedByName(snap.Deployments)
	statefulSets := sortedByName(snap.StatefulSets)
	pods := sortedByName(snap.Pods)

	reg := newClaimRegistry()
	out := make([]models.ResourceNode, 0, len(services))

	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel := SelectorFromService(svc)
		node := serviceNode(svc)
		for _, d := range Match(sel, deployments) {
			if !reg.claim(models.KindDeployment, d.Name) {
				continue
			}
			node.Associated = append(node.Associated, controllerNode(models.KindDeployment, d, d.Spec.Selector, d.Status.ReadyReplicas, pods, reg))
		}
		for _, s := range Match(sel, statefulSets) {
			if !reg.claim(models.KindStatefulSet, s.Name) {
				continue
			}
			node.Associated = append(node.Associated, controllerNode(models.KindStatefulSet, s, s.Spec.Selector, s.Status.ReadyReplicas, pods, reg))
		}
		for _, p := range Match(sel, pods) {
			if reg.claim(models.KindPod, p.Name) {
				node.Associated = append(node.Associated, podNode(p))
			}
		}
		node.Category = b.classify(ctx, svc.Name, "")
		out = append(out, node)
	}

	for _, d := range deployments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !reg.claim(models.KindDeployment, d.Name) {
			continue
		}
		node := controllerNode(models.KindDeployment, d, d.Spec.Selector, d.Status.ReadyReplicas, pods, reg)
		node.Category = b.classify(ctx, d.Name, firstImage(&d.Spec.Template.Spec))
		out = append(out, node)
	}

	for _, s := range statefulSets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !reg.claim(models.KindStatefulSet, s.Name) {
			continue
		}
		node := controllerNode(models.KindStatefulSet, s, s.Spec.Selector, s.Status.ReadyReplicas, pods, reg)
		node.Category = b.classify(ctx, s.Name, firstImage(&s.Spec.Template.Spec))
		out = append(out, node)
	}

	for _, p := range pods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !reg.claim(models.KindPod, p.Name) {
			continue
		}
		node := podNode(p)
		node.Category = b.classify(ctx, p.Name, firstImage(&p.Spec))
		out = append(out, node)
	}

	// The last classification may have been cut short by cancellation.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateTree(out); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return out, nil
}

// classify never fails: errors, panics, timeouts and out-of-set answers become Unknown.
func (b *Builder) classify(ctx context.Context, name, image string) string {
	cctx, cancel := context.WithTimeout(ctx, b.classifyTimeout)
	defer cancel()

	type result struct {
		category string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("classifier panic: %v", r)}
			}
		}()
		category, err := b.classifier.Classify(cctx, name, image)
		done <- result{category: category, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			b.classifyFailed(name, "error", r.err)
			return classifier.Unknown
		}
		if !classifier.Valid(r.category) {
			b.classifyFailed(name, "invalid", fmt.Errorf("category %q not recognized", r.category))
			return classifier.Unknown
		}
		return r.category
	case <-cctx.Done():
		if ctx.Err() == nil {
			b.classifyFailed(name, "timeout", cctx.Err())
		}
		return classifier.Unknown
	}
}

func (b *Builder) classifyFailed(name, reason string, err error) {
	metrics.ClassificationFailuresTotal.WithLabelValues(reason).Inc()
	b.logger.Warn("classification failed, using Unknown", "resource", name, "reason", reason, "error", err)
}

// controllerNode nests the unclaimed pods matched by the controller's own selector.
func controllerNode(kind models.ResourceKind, obj metav1.Object, selector *metav1.LabelSelector, readyReplicas int32, pods []*corev1.Pod, reg *claimRegistry) models.ResourceNode {
	node := models.NewResourceNode(kind, obj.GetName(), controllerStatus(readyReplicas), obj.GetCreationTimestamp().Time)
	for _, p := range Match(SelectorFromLabelSelector(selector), pods) {
		if reg.claim(models.KindPod, p.Name) {
			node.Associated = append(node.Associated, podNode(p))
		}
	}
	return node
}

func controllerStatus(readyReplicas int32) string {
	if readyReplicas > 0 {
		return StatusAvailable
	}
	return StatusPending
}

func serviceNode(svc *corev1.Service) models.ResourceNode {
	node := models.NewResourceNode(models.KindService, svc.Name, StatusActive, svc.CreationTimestamp.Time)
	node.Ports = servicePorts(svc)
	node.ClusterIP = svc.Spec.ClusterIP
	return node
}

// servicePorts formats ports as "<port>/<protocol>", protocol defaulting to TCP.
func servicePorts(svc *corev1.Service) []string {
	ports := make([]string, 0, len(svc.Spec.Ports))
	for _, p := range svc.Spec.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = corev1.ProtocolTCP
		}
		ports = append(ports, fmt.Sprintf("%d/%s", p.Port, proto))
	}
	return ports
}

func podNode(p *corev1.Pod) models.ResourceNode {
	status := string(p.Status.Phase)
	if status == "" {
		status = StatusUnknown
	}
	node := models.NewResourceNode(models.KindPod, p.Name, status, p.CreationTimestamp.Time)
	node.PersistentVolumeClaims = podClaims(p)
	return node
}

// podClaims returns the PVC names mounted by p, in volume order.
func podClaims(p *corev1.Pod) []string {
	claims := []string{}
	for _, v := range p.Spec.Volumes {
		if v.PersistentVolumeClaim != nil && v.PersistentVolumeClaim.ClaimName != "" {
			claims = append(claims, v.PersistentVolumeClaim.ClaimName)
		}
	}
	return claims
}

func firstImage(spec *corev1.PodSpec) string {
	if spec == nil || len(spec.Containers) == 0 {
		return ""
	}
	return spec.Containers[0].Image
}

// sortedByName returns pointers into items ordered by name. items is not modified.
func sortedByName[T any, P interface {
	*T
	metav1.Object
}](items []T) []P {
	out := make([]P, len(items))
	for i := range items {
		out[i] = P(&items[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}
