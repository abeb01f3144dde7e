// Package classifier assigns coarse workload categories (API, DB, Cache, ...) to
// top-level topology nodes from their name and optional container image.
package classifier

import (
	"context"
	"fmt"
	"strings"
)

// Workload categories.
const (
	API      = "API"
	DB       = "DB"
	Cache    = "Cache"
	Frontend = "Frontend"
	Worker   = "Worker"
	Proxy    = "Proxy"
	Unknown  = "Unknown"
)

// Categories lists every category a classifier may return, Unknown last.
var Categories = []string{API, DB, Cache, Frontend, Worker, Proxy, Unknown}

// Classifier maps a resource name and optional container image to a category.
// image is empty when the resource has none (Services).
type Classifier interface {
	Classify(ctx context.Context, name, image string) (string, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, name, image string) (string, error)

func (f Func) Classify(ctx context.Context, name, image string) (string, error) {
	return f(ctx, name, image)
}

// Valid reports whether category is one of Categories.
func Valid(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// imageBase reduces a container image reference to its repository basename:
// "gcr.io/acme/redis-exporter:1.2@sha256:..." becomes "redis-exporter".
func imageBase(image string) string {
	image = strings.TrimSpace(image)
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndex(image, "/"); i >= 0 {
		image = image[i+1:]
	}
	if i := strings.Index(image, ":"); i >= 0 {
		image = image[:i]
	}
	return strings.ToLower(image)
}

// Options selects and tunes the classifier built by New.
type Options struct {
	// Mode is "embedding" (nearest example, falling back to keyword rules) or "heuristic".
	Mode string
	// ExamplesFile optionally overrides the embedding example set (YAML).
	ExamplesFile string
	// CacheSize bounds the memo of results; 0 disables memoization.
	CacheSize int
}

// New builds the classifier described by opts, instrumented and memoized.
func New(opts Options) (Classifier, error) {
	var c Classifier
	switch strings.ToLower(opts.Mode) {
	case "", "embedding":
		examples := DefaultExamples()
		if opts.ExamplesFile != "" {
			loaded, err := LoadExamples(opts.ExamplesFile)
			if err != nil {
				return nil, err
			}
			examples = loaded
		}
		c = Fallback(NewEmbedding(examples), Heuristic{})
	case "heuristic":
		c = Heuristic{}
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", opts.Mode)
	}
	c = Instrumented(c)
	if opts.CacheSize > 0 {
		cached, err := NewCached(c, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		c = cached
	}
	return c, nil
}
