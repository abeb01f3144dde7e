package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/vanshmadan/gke-connect/internal/models"
)

// DefaultTailLines is the number of log lines returned per pod when none is requested.
const DefaultTailLines int64 = 100

// ErrNoPods is returned when a controller owns no pods in the namespace.
var ErrNoPods = errors.New("no pods found for controller")

// PodLogSource lists a controller's pods and reads their logs.
type PodLogSource interface {
	ControllerPods(ctx context.Context, namespace, controller string) ([]corev1.Pod, error)
	PodLogs(ctx context.Context, namespace, pod string, tailLines int64) (string, error)
}

// LogsService provides access to controller logs
type LogsService interface {
	GetControllerLogs(ctx context.Context, namespace, controller string, tailLines int64) (*models.ControllerLogs, error)
}

type logsService struct {
	source PodLogSource
	logger *slog.Logger
}

// NewLogsService creates a new logs service
func NewLogsService(source PodLogSource, logger *slog.Logger) LogsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &logsService{source: source, logger: logger}
}

// GetControllerLogs returns the log tail of every pod of controller. A pod whose logs
// cannot be read is reported in its entry and does not fail the call.
func (s *logsService) GetControllerLogs(ctx context.Context, namespace, controller string, tailLines int64) (*models.ControllerLogs, error) {
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}
	pods, err := s.source.ControllerPods(ctx, namespace, controller)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods of %s: %w", controller, err)
	}
	if len(pods) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPods, controller)
	}

	out := &models.ControllerLogs{
		Namespace:  namespace,
		Controller: controller,
		TailLines:  tailLines,
		Pods:       make([]models.PodLog, 0, len(pods)),
	}
	for _, pod := range pods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := models.PodLog{Pod: pod.Name}
		log, err := s.source.PodLogs(ctx, namespace, pod.Name, tailLines)
		if err != nil {
			s.logger.Warn("failed to read pod logs", "namespace", namespace, "pod", pod.Name, "error", err)
			entry.Error = err.Error()
		} else {
			entry.Log = log
		}
		out.Pods = append(out.Pods, entry)
	}
	return out, nil
}

// FormatLegacyLogs renders controller logs as the plain-text blocks of the
// /api/logs endpoint: one header per pod, blocks separated by a blank line.
func FormatLegacyLogs(logs *models.ControllerLogs) string {
	if logs == nil {
		return ""
	}
	blocks := make([]string, 0, len(logs.Pods))
	for _, p := range logs.Pods {
		if p.Error != "" {
			blocks = append(blocks, fmt.Sprintf("\n❌ Failed to get logs from %s: %s", p.Pod, p.Error))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("\n◆ Deployment Pod: %s\n", p.Pod)+p.Log)
	}
	return strings.Join(blocks, "\n\n")
}
