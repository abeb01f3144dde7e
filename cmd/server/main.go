package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/vanshmadan/gke-connect/internal/api/middleware"
	"github.com/vanshmadan/gke-connect/internal/api/rest"
	"github.com/vanshmadan/gke-connect/internal/api/websocket"
	"github.com/vanshmadan/gke-connect/internal/classifier"
	"github.com/vanshmadan/gke-connect/internal/config"
	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/pkg/logger"
	"github.com/vanshmadan/gke-connect/internal/pkg/topologycache"
	"github.com/vanshmadan/gke-connect/internal/pkg/tracing"
	"github.com/vanshmadan/gke-connect/internal/service"
	"github.com/vanshmadan/gke-connect/internal/stream"
	"github.com/vanshmadan/gke-connect/internal/topology"
)

const serviceName = "gke-connect"

func main() {
	log := logger.StdLogger()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.Warn("ignoring log_level", "error", err)
	}
	config.Watch(func(c *config.Config) {
		if err := logger.SetLevel(c.LogLevel); err != nil {
			log.Warn("ignoring reloaded log_level", "error", err)
			return
		}
		log.Info("config reloaded", "log_level", c.LogLevel)
	}, func(err error) {
		log.Warn("ignoring invalid config revision", "error", err)
	})
	log.Info("configuration loaded", "port", cfg.Port, "classifier", cfg.ClassifierMode, "cache_ttl_sec", cfg.TopologyCacheTTLSec)

	shutdownTracing, err := tracing.Init(serviceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing()

	client, err := k8s.NewClient(cfg.KubeconfigPath, cfg.KubeContext)
	if err != nil {
		return err
	}
	if cfg.K8sTimeoutSec > 0 {
		client.SetTimeout(time.Duration(cfg.K8sTimeoutSec) * time.Second)
	}
	if cfg.K8sRateLimitPerSec > 0 && cfg.K8sRateLimitBurst > 0 {
		client.SetLimiter(rate.NewLimiter(rate.Limit(cfg.K8sRateLimitPerSec), cfg.K8sRateLimitBurst))
	}
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.TestConnection(probeCtx); err != nil {
		// Serve anyway; /healthz/ready reports the outage.
		log.Warn("kubernetes API not reachable at startup", "error", err)
	}
	probeCancel()

	cls, err := classifier.New(classifier.Options{
		Mode:         cfg.ClassifierMode,
		ExamplesFile: cfg.ClassifierExamplesFile,
		CacheSize:    cfg.ClassifierCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	builder := topology.NewBuilder(cls,
		topology.WithLogger(log),
		topology.WithClassifyTimeout(time.Duration(cfg.ClassifierTimeoutMs)*time.Millisecond),
	)
	streamer := stream.New(client, builder, stream.WithLogger(log))
	cache := topologycache.New(time.Duration(cfg.TopologyCacheTTLSec) * time.Second)

	topologyService := service.NewTopologyService(client, builder, streamer, cache, log)
	logsService := service.NewLogsService(client, log)
	workloadService := service.NewWorkloadService(client, cache, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()

	srvHandler := newRouter(serverDeps{
		cfg:       cfg,
		cluster:   client,
		topology:  topologyService,
		logs:      logsService,
		workloads: workloadService,
		hub:       wsHub,
		log:       log,
	})

	requestTimeout := 30 * time.Second
	if cfg.RequestTimeoutSec > 0 {
		requestTimeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srvHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr,
			"api", fmt.Sprintf("http://localhost:%d/api/v1", cfg.Port),
			"stream", fmt.Sprintf("ws://localhost:%d/ws/resources", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Close live streams first; hijacked connections are not tracked by Shutdown.
	wsHub.Stop()

	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}
	log.Info("server exited gracefully")
	return nil
}

type serverDeps struct {
	cfg       *config.Config
	cluster   rest.ClusterHealth
	topology  service.TopologyService
	logs      service.LogsService
	workloads service.WorkloadService
	hub       *websocket.Hub
	log       *slog.Logger
}

// newRouter assembles the REST, legacy, stream, health and metrics routes behind
// the middleware chain and CORS.
func newRouter(d serverDeps) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Tracing)
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(recoveryMiddleware(d.log))
	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RateLimit())
	router.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	healthz := rest.NewHealthzHandler(d.cluster)
	router.HandleFunc("/health", healthz.Health).Methods("GET")
	router.HandleFunc("/healthz/live", healthz.Live).Methods("GET")
	router.HandleFunc("/healthz/ready", healthz.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	handler := rest.NewHandler(d.topology, d.logs, d.workloads)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	rest.SetupRoutes(apiRouter, handler)
	rest.SetupLegacyRoutes(router, handler)

	wsHandler := websocket.NewHandler(d.hub, d.topology,
		websocket.WithPingPeriod(time.Duration(d.cfg.StreamPingSec)*time.Second),
		websocket.WithAllowedOrigins(d.cfg.AllowedOrigins),
		websocket.WithLogger(d.log),
	)
	apiRouter.HandleFunc("/environments/{namespace}/resources/stream", wsHandler.ServeEnvironmentStream).Methods("GET")
	router.HandleFunc("/ws/resources", wsHandler.ServeResources).Methods("GET")

	middleware.WarnWildcardCORS(d.cfg.AllowedOrigins, d.log)
	c := cors.New(cors.Options{
		AllowedOrigins:   d.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", middleware.ResponseRequestIDHeader},
		ExposedHeaders:   []string{middleware.ResponseRequestIDHeader, middleware.TraceIDHeader},
		AllowCredentials: false,
	})
	return c.Handler(router)
}

func recoveryMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered", "error", err, "path", r.URL.Path, "request_id", logger.FromContext(r.Context()))
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
