package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps client-go with a per-call timeout, an optional rate limiter, retries and a circuit breaker.
type Client struct {
	Clientset      kubernetes.Interface
	Config         *rest.Config
	Context        string
	kubeconfigPath string
	// Timeout for outbound K8s API calls; 0 means no timeout (use request context only).
	// Watches are long-lived and never get this timeout.
	Timeout time.Duration
	// Limiter optionally rate-limits outbound API calls. Nil = no limit.
	limiter *rate.Limiter
	// circuitBreaker fails fast while the API server is unavailable.
	circuitBreaker *CircuitBreaker
	// Health status: last successful call time, last error.
	lastSuccessTime time.Time
	lastError       error
	healthMu        sync.RWMutex
}

// NewClient creates a new Kubernetes client. With an empty kubeconfigPath the in-cluster
// config is tried first, then ~/.kube/config. kubeContext overrides the current-context.
func NewClient(kubeconfigPath, kubeContext string) (*Client, error) {
	var config *rest.Config
	var err error

	if kubeconfigPath == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			homeDir, _ := os.UserHomeDir()
			if homeDir != "" {
				kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
			}
		}
	}

	if config == nil {
		config, err = buildConfigFromFlags(kubeContext, kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{
		Clientset:       clientset,
		Config:          config,
		Context:         kubeContext,
		kubeconfigPath:  kubeconfigPath,
		circuitBreaker:  NewCircuitBreaker(clusterLabel(config, kubeContext)),
		lastSuccessTime: time.Now(),
	}, nil
}

// clusterLabel names the cluster for circuit breaker metrics: the context when set, else the API host.
func clusterLabel(config *rest.Config, kubeContext string) string {
	if kubeContext != "" {
		return kubeContext
	}
	if config != nil {
		return config.Host
	}
	return ""
}

// SetTimeout sets the timeout for outbound K8s API calls.
func (c *Client) SetTimeout(d time.Duration) {
	c.Timeout = d
}

// SetLimiter sets a token-bucket rate limiter for outbound K8s API calls.
func (c *Client) SetLimiter(l *rate.Limiter) {
	c.limiter = l
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// withTimeout returns ctx with timeout applied if c.Timeout > 0; otherwise returns ctx and a no-op cancel.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return ctx, func() {}
}

func buildConfigFromFlags(kubeContext, kubeconfigPath string) (*rest.Config, error) {
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
		&clientcmd.ConfigOverrides{
			CurrentContext: kubeContext,
		}).ClientConfig()
}

// call runs fn behind the rate limiter and circuit breaker, with the client timeout and retries on 5xx/429.
func call[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.waitRateLimit(ctx); err != nil {
		return zero, err
	}

	var result T
	err := c.circuitBreaker.Execute(ctx, func() error {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		var fnErr error
		result, fnErr = retry(ctx, listRetry, fn)
		return fnErr
	})

	c.updateHealth(err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// TestConnection verifies connectivity to the cluster (with timeout, retry, and circuit breaker).
// A Forbidden answer still proves the API server is up: a service account scoped to its
// own namespace may not list namespaces.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := call(ctx, c, func(ctx context.Context) (struct{}, error) {
		_, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
		if apierrors.IsForbidden(err) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	return err
}

// updateHealth updates the health status of the client.
func (c *Client) updateHealth(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	if err == nil {
		c.lastSuccessTime = time.Now()
		c.lastError = nil
	} else if !isCallerCancellation(err) {
		c.lastError = err
	}
}

// HealthStatus returns the health status of the cluster connection.
func (c *Client) HealthStatus() (isHealthy bool, lastSuccess time.Time, lastErr error, circuitState CircuitBreakerState) {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()

	state := c.circuitBreaker.State()
	isHealthy = state == StateClosed && c.lastError == nil
	return isHealthy, c.lastSuccessTime, c.lastError, state
}

// NewClientForTest creates a Client that uses the given Clientset. Config is nil.
func NewClientForTest(clientset kubernetes.Interface) *Client {
	return &Client{
		Clientset:       clientset,
		circuitBreaker:  NewCircuitBreaker("test"),
		lastSuccessTime: time.Now(),
	}
}
