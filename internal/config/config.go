package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Classifier modes.
const (
	ClassifierEmbedding = "embedding"
	ClassifierHeuristic = "heuristic"
)

type Config struct {
	Port                   int      `mapstructure:"port"`
	LogLevel               string   `mapstructure:"log_level"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
	KubeconfigPath         string   `mapstructure:"kubeconfig_path"`          // Empty: in-cluster config, then ~/.kube/config
	KubeContext            string   `mapstructure:"kube_context"`             // Empty: current-context of the kubeconfig
	RequestTimeoutSec      int      `mapstructure:"request_timeout_sec"`      // HTTP read/write; 0 = use server default
	K8sTimeoutSec          int      `mapstructure:"k8s_timeout_sec"`          // Timeout for outbound K8s API calls; 0 = default
	K8sRateLimitPerSec     float64  `mapstructure:"k8s_rate_limit_per_sec"`   // Token bucket rate (req/s); 0 = no limit
	K8sRateLimitBurst      int      `mapstructure:"k8s_rate_limit_burst"`     // Token bucket burst; 0 = no limit
	TopologyCacheTTLSec    int      `mapstructure:"topology_cache_ttl_sec"`   // Topology cache TTL; 0 = cache disabled
	ClassifierMode         string   `mapstructure:"classifier_mode"`          // embedding | heuristic
	ClassifierExamplesFile string   `mapstructure:"classifier_examples_file"` // Optional YAML example set for the embedding classifier
	ClassifierTimeoutMs    int      `mapstructure:"classifier_timeout_ms"`    // Per-node classification deadline
	ClassifierCacheSize    int      `mapstructure:"classifier_cache_size"`    // LRU entries; 0 = no memoization
	StreamPingSec          int      `mapstructure:"stream_ping_sec"`          // WebSocket keep-alive ping period
	TracingEndpoint        string   `mapstructure:"tracing_endpoint"`         // OTLP endpoint; empty = tracing disabled
	TracingSamplingRate    float64  `mapstructure:"tracing_sampling_rate"`
	ShutdownTimeoutSec     int      `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/gke-connect/")
	viper.AddConfigPath("$HOME/.gke-connect")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("kubeconfig_path", "")
	viper.SetDefault("kube_context", "")
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("k8s_timeout_sec", 15)
	viper.SetDefault("k8s_rate_limit_per_sec", 0) // 0 = disabled
	viper.SetDefault("k8s_rate_limit_burst", 0)
	viper.SetDefault("topology_cache_ttl_sec", 5)
	viper.SetDefault("classifier_mode", ClassifierEmbedding)
	viper.SetDefault("classifier_examples_file", "")
	viper.SetDefault("classifier_timeout_ms", 2000)
	viper.SetDefault("classifier_cache_size", 1024)
	viper.SetDefault("stream_ping_sec", 30)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_sampling_rate", 1.0)
	viper.SetDefault("shutdown_timeout_sec", 15)

	// Environment variables
	viper.SetEnvPrefix("GKE_CONNECT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	return current()
}

func current() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch strings.ToLower(c.ClassifierMode) {
	case ClassifierEmbedding, ClassifierHeuristic:
	default:
		errs = append(errs, fmt.Errorf("unknown classifier_mode %q (want %s or %s)", c.ClassifierMode, ClassifierEmbedding, ClassifierHeuristic))
	}
	if c.ClassifierTimeoutMs < 0 {
		errs = append(errs, errors.New("classifier_timeout_ms must not be negative"))
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing_sampling_rate %v must be within [0,1]", c.TracingSamplingRate))
	}
	return errors.Join(errs...)
}

// Watch re-reads the config file whenever it changes on disk and hands the new
// config to onChange. Invalid revisions are reported through onError and ignored.
// No-op when Load did not find a config file.
func Watch(onChange func(*Config), onError func(error)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := current()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}
