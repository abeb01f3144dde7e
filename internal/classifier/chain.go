package classifier

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vanshmadan/gke-connect/internal/pkg/metrics"
)

type fallback struct {
	primary, secondary Classifier
}

// Fallback asks secondary whenever primary fails or answers Unknown.
func Fallback(primary, secondary Classifier) Classifier {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Classify(ctx context.Context, name, image string) (string, error) {
	category, err := f.primary.Classify(ctx, name, image)
	if err == nil && category != Unknown {
		return category, nil
	}
	if ctx.Err() != nil {
		return Unknown, ctx.Err()
	}
	return f.secondary.Classify(ctx, name, image)
}

type cacheKey struct {
	name, image string
}

// Cached memoizes successful classifications in a bounded LRU.
type Cached struct {
	inner Classifier
	cache *lru.Cache[cacheKey, string]
}

// NewCached wraps inner with an LRU of size entries.
func NewCached(inner Classifier, size int) (*Cached, error) {
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Classify(ctx context.Context, name, image string) (string, error) {
	key := cacheKey{name: name, image: image}
	if category, ok := c.cache.Get(key); ok {
		return category, nil
	}
	category, err := c.inner.Classify(ctx, name, image)
	if err != nil {
		return category, err
	}
	c.cache.Add(key, category)
	return category, nil
}

// Len returns the number of memoized results.
func (c *Cached) Len() int {
	return c.cache.Len()
}

type instrumented struct {
	inner Classifier
}

// Instrumented counts results by category and errors.
func Instrumented(inner Classifier) Classifier {
	return &instrumented{inner: inner}
}

func (i *instrumented) Classify(ctx context.Context, name, image string) (string, error) {
	category, err := i.inner.Classify(ctx, name, image)
	if err != nil {
		metrics.ClassificationFailuresTotal.WithLabelValues("error").Inc()
		return category, err
	}
	metrics.ClassificationsTotal.WithLabelValues(category).Inc()
	return category, nil
}
