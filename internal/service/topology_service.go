package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/topologycache"
	"github.com/vanshmadan/gke-connect/internal/stream"
	"github.com/vanshmadan/gke-connect/internal/topology"
)

// TopologyService builds environment topologies on demand and as live streams.
type TopologyService interface {
	GetEnvironmentResources(ctx context.Context, namespace string) ([]models.ResourceNode, error)
	StreamEnvironmentResources(ctx context.Context, namespace string) <-chan models.StreamMessage
}

type topologyService struct {
	source   k8s.SnapshotSource
	builder  stream.TopologyBuilder
	streamer *stream.Streamer
	cache    *topologycache.Cache
	logger   *slog.Logger
}

// NewTopologyService wires the snapshot source, builder and streamer. cache may be nil.
func NewTopologyService(source k8s.SnapshotSource, builder stream.TopologyBuilder, streamer *stream.Streamer, cache *topologycache.Cache, logger *slog.Logger) TopologyService {
	if cache == nil {
		cache = topologycache.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &topologyService{
		source:   source,
		builder:  builder,
		streamer: streamer,
		cache:    cache,
		logger:   logger,
	}
}

func (s *topologyService) GetEnvironmentResources(ctx context.Context, namespace string) ([]models.ResourceNode, error) {
	gen := s.cache.Generation(namespace)
	if cached, ok := s.cache.Get(namespace); ok {
		return cached, nil
	}
	snap, err := k8s.FetchSnapshot(ctx, s.source, namespace)
	if err != nil {
		return nil, err
	}
	nodes, err := s.builder.Build(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to build topology for %s: %w", namespace, err)
	}
	if !s.cache.SetIfCurrent(namespace, gen, nodes) {
		s.logger.Debug("topology invalidated during build, not cached", "namespace", namespace)
	}
	counts := topology.Count(nodes)
	s.logger.Debug("topology built", "namespace", namespace, "top_level", len(nodes),
		"services", counts[models.KindService], "pods", counts[models.KindPod])
	return nodes, nil
}

// StreamEnvironmentResources relays a live stream, refreshing the cache with every update
// until the namespace is next invalidated. Updates are buffered, so one delivered after an
// invalidation may have been built before it.
func (s *topologyService) StreamEnvironmentResources(ctx context.Context, namespace string) <-chan models.StreamMessage {
	gen := s.cache.Generation(namespace)
	in := s.streamer.Stream(ctx, namespace)
	out := make(chan models.StreamMessage)
	go func() {
		defer close(out)
		for msg := range in {
			if !msg.IsError() {
				s.cache.SetIfCurrent(namespace, gen, msg.Resources)
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				// The streamer closes in once it sees ctx; drain until then.
				for range in {
				}
				return
			}
		}
	}()
	return out
}
