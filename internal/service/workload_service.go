package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	appsv1 "k8s.io/api/apps/v1"

	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/topologycache"
)

// ErrUnknownAction is returned for actions other than start, stop and redeploy.
var ErrUnknownAction = errors.New("unknown workload action")

// DeploymentController scales and restarts Deployments.
type DeploymentController interface {
	ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) (*appsv1.Deployment, error)
	RestartDeployment(ctx context.Context, namespace, name string, at time.Time) (*appsv1.Deployment, error)
}

// WorkloadService starts, stops and redeploys Deployments.
type WorkloadService interface {
	Start(ctx context.Context, namespace, name string) (*models.WorkloadAction, error)
	Stop(ctx context.Context, namespace, name string) (*models.WorkloadAction, error)
	Redeploy(ctx context.Context, namespace, name string) (*models.WorkloadAction, error)
	Do(ctx context.Context, namespace, name, action string) (*models.WorkloadAction, error)
}

type workloadService struct {
	deployments DeploymentController
	cache       *topologycache.Cache
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorkloadService creates a workload service. A successful action invalidates the
// namespace's cached topology; cache may be nil.
func NewWorkloadService(deployments DeploymentController, cache *topologycache.Cache, logger *slog.Logger) WorkloadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &workloadService{
		deployments: deployments,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// Start scales the Deployment to one replica.
func (s *workloadService) Start(ctx context.Context, namespace, name string) (*models.WorkloadAction, error) {
	return s.scale(ctx, namespace, name, models.WorkloadActionStart, 1)
}

// Stop scales the Deployment to zero replicas.
func (s *workloadService) Stop(ctx context.Context, namespace, name string) (*models.WorkloadAction, error) {
	return s.scale(ctx, namespace, name, models.WorkloadActionStop, 0)
}

// Redeploy triggers a rolling restart.
func (s *workloadService) Redeploy(ctx context.Context, namespace, name string) (*models.WorkloadAction, error) {
	at := s.now().UTC()
	if _, err := s.deployments.RestartDeployment(ctx, namespace, name, at); err != nil {
		return nil, err
	}
	return s.done(namespace, &models.WorkloadAction{
		Namespace: namespace,
		Name:      name,
		Action:    models.WorkloadActionRedeploy,
		Message:   fmt.Sprintf("%s re-deployed in %s", name, namespace),
		At:        at,
	}), nil
}

// Do dispatches action by name.
func (s *workloadService) Do(ctx context.Context, namespace, name, action string) (*models.WorkloadAction, error) {
	switch action {
	case models.WorkloadActionStart:
		return s.Start(ctx, namespace, name)
	case models.WorkloadActionStop:
		return s.Stop(ctx, namespace, name)
	case models.WorkloadActionRedeploy:
		return s.Redeploy(ctx, namespace, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (s *workloadService) scale(ctx context.Context, namespace, name, action string, replicas int32) (*models.WorkloadAction, error) {
	if _, err := s.deployments.ScaleDeployment(ctx, namespace, name, replicas); err != nil {
		return nil, err
	}
	return s.done(namespace, &models.WorkloadAction{
		Namespace: namespace,
		Name:      name,
		Action:    action,
		Replicas:  &replicas,
		Message:   fmt.Sprintf("%s scaled to %d in %s", name, replicas, namespace),
		At:        s.now().UTC(),
	}), nil
}

func (s *workloadService) done(namespace string, a *models.WorkloadAction) *models.WorkloadAction {
	if s.cache != nil {
		s.cache.Invalidate(namespace)
	}
	s.logger.Info("workload action applied", "namespace", namespace, "name", a.Name, "action", a.Action)
	return a
}
