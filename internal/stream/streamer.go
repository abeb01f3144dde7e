// Package stream keeps a namespace topology current for one subscriber: an initial
// build, then a rebuild whenever the namespace's pods change.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/metrics"
)

// ErrWatchClosed is reported when the pod watch ends without the subscriber leaving.
var ErrWatchClosed = errors.New("pod watch closed unexpectedly")

// State is the lifecycle position of a Session.
type State int32

const (
	Idle State = iota
	Subscribed
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Subscribed:
		return "subscribed"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// TopologyBuilder turns a snapshot into a resource tree.
type TopologyBuilder interface {
	Build(ctx context.Context, snap *k8s.Snapshot) ([]models.ResourceNode, error)
}

// Streamer opens per-subscriber topology streams. It holds no per-stream state.
type Streamer struct {
	source  k8s.SnapshotSource
	builder TopologyBuilder
	logger  *slog.Logger
	buffer  int
}

// Option configures a Streamer.
type Option func(*Streamer)

func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBuffer sets the capacity of each subscriber channel.
func WithBuffer(n int) Option {
	return func(s *Streamer) {
		if n >= 0 {
			s.buffer = n
		}
	}
}

func New(source k8s.SnapshotSource, builder TopologyBuilder, opts ...Option) *Streamer {
	s := &Streamer{source: source, builder: builder, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is one live subscription.
type Session struct {
	ID        string
	Namespace string

	state atomic.Int32
	out   chan models.StreamMessage
	done  chan struct{}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Messages delivers a full tree per update. After an error message, or when the
// subscription context ends, the channel is closed.
func (s *Session) Messages() <-chan models.StreamMessage {
	return s.out
}

// Done is closed once the session is Closed and its watch released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Open starts streaming namespace until ctx is done or an error occurs.
func (st *Streamer) Open(ctx context.Context, namespace string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Namespace: namespace,
		out:       make(chan models.StreamMessage, st.buffer),
		done:      make(chan struct{}),
	}
	go st.run(ctx, s)
	return s
}

// Stream is Open for callers that only need the messages.
func (st *Streamer) Stream(ctx context.Context, namespace string) <-chan models.StreamMessage {
	return st.Open(ctx, namespace).Messages()
}

type rebuildResult struct {
	nodes []models.ResourceNode
	err   error
}

func (st *Streamer) run(ctx context.Context, s *Session) {
	log := st.logger.With("stream_id", s.ID, "namespace", s.Namespace)
	metrics.StreamsActive.Inc()
	defer func() {
		s.setState(Closed)
		close(s.out)
		close(s.done)
		metrics.StreamsActive.Dec()
		log.Debug("topology stream closed")
	}()

	s.setState(Subscribed)
	snap, err := k8s.FetchSnapshot(ctx, st.source, s.Namespace)
	if err != nil {
		st.fail(ctx, s, log, err)
		return
	}
	nodes, err := st.builder.Build(ctx, snap)
	if err != nil {
		st.fail(ctx, s, log, err)
		return
	}
	if !st.deliver(ctx, s, models.NewUpdateMessage(nodes)) {
		return
	}

	w, err := st.source.WatchPods(ctx, s.Namespace, snap.PodsResourceVersion)
	if err != nil {
		st.fail(ctx, s, log, err)
		return
	}
	defer w.Stop()
	s.setState(Streaming)
	log.Debug("topology stream watching pods", "resource_version", snap.PodsResourceVersion)

	events := w.ResultChan()
	results := make(chan rebuildResult, 1)
	dirty, rebuilding := false, false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				st.fail(ctx, s, log, ErrWatchClosed)
				return
			}
			switch ev.Type {
			case watch.Error:
				st.fail(ctx, s, log, apierrors.FromObject(ev.Object))
				return
			case watch.Bookmark:
				continue
			}
			if dirty || rebuilding {
				metrics.StreamCoalescedEventsTotal.Inc()
			}
			dirty = true
		case r := <-results:
			rebuilding = false
			if r.err != nil {
				st.fail(ctx, s, log, r.err)
				return
			}
			if !st.deliver(ctx, s, models.NewUpdateMessage(r.nodes)) {
				return
			}
		}
		if dirty && !rebuilding {
			dirty, rebuilding = false, true
			go st.rebuild(ctx, s.Namespace, results)
		}
	}
}

// rebuild always sends exactly one result; results has room for it.
func (st *Streamer) rebuild(ctx context.Context, namespace string, results chan<- rebuildResult) {
	metrics.StreamRebuildsTotal.Inc()
	snap, err := k8s.FetchSnapshot(ctx, st.source, namespace)
	if err != nil {
		results <- rebuildResult{err: err}
		return
	}
	nodes, err := st.builder.Build(ctx, snap)
	results <- rebuildResult{nodes: nodes, err: err}
}

// deliver hands msg to the subscriber unless the subscription has ended.
func (st *Streamer) deliver(ctx context.Context, s *Session, msg models.StreamMessage) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail reports err as the final message. Cancellation is not an error.
func (st *Streamer) fail(ctx context.Context, s *Session, log *slog.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	log.Warn("topology stream failed", "error", err)
	st.deliver(ctx, s, models.NewErrorMessage(err.Error()))
}
