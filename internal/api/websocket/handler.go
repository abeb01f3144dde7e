package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/validate"
)

// TopologyStreamer opens a live topology stream; the channel closes when ctx ends
// or after a terminal error message.
type TopologyStreamer interface {
	StreamEnvironmentResources(ctx context.Context, namespace string) <-chan models.StreamMessage
}

// Handler upgrades HTTP requests into topology stream subscriptions.
type Handler struct {
	hub        *Hub
	streams    TopologyStreamer
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPingPeriod sets the keep-alive ping interval.
func WithPingPeriod(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pingPeriod = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins restricts upgrades to the given origins. "*" or an empty list allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[o] = true
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, streams TopologyStreamer, opts ...Option) *Handler {
	h := &Handler{
		hub:     hub,
		streams: streams,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingPeriod: defaultPingPeriod,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeResources handles GET /ws/resources?env_name=<namespace>.
func (h *Handler) ServeResources(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, r.URL.Query().Get("env_name"))
}

// ServeEnvironmentStream handles GET /api/v1/environments/{namespace}/resources/stream.
func (h *Handler) ServeEnvironmentStream(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, mux.Vars(r)["namespace"])
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, namespace string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if !validate.Namespace(namespace) {
		msg := "env_name is required"
		if namespace != "" {
			msg = fmt.Sprintf("invalid environment name %q", namespace)
		}
		rejectConn(conn, msg)
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString(), namespace, h.pingPeriod, h.logger)
	if !h.hub.Register(client) {
		rejectConn(conn, "server is shutting down")
		return
	}

	messages := h.streams.StreamEnvironmentResources(client.Context(), namespace)
	go client.WritePump(messages)
	go client.ReadPump()

	h.logger.Debug("websocket client connected", "client_id", client.id, "namespace", namespace)
}

// rejectConn sends a single error frame followed by a close frame.
func rejectConn(conn *websocket.Conn, message string) {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(models.NewErrorMessage(message)); err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
}
