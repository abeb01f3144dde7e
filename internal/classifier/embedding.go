package classifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	embeddingDims = 512
	// DefaultMinScore is the cosine similarity at or below which a query is Unknown.
	DefaultMinScore = 0.2
)

// DefaultExamples is the built-in example set: a few representative names per category.
func DefaultExamples() map[string][]string {
	return map[string][]string{
		API:      {"auth-service", "api-gateway", "user-api"},
		DB:       {"postgres", "mysql", "mongo-db"},
		Cache:    {"redis", "memcached"},
		Frontend: {"react-ui", "web-frontend", "nextjs-ui"},
		Worker:   {"cronjob-runner", "job-processor", "queue-worker"},
		Proxy:    {"nginx", "haproxy", "reverse-proxy"},
	}
}

// LoadExamples reads a category → example names map from a YAML file.
func LoadExamples(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier examples: %w", err)
	}
	var examples map[string][]string
	if err := yaml.Unmarshal(raw, &examples); err != nil {
		return nil, fmt.Errorf("failed to parse classifier examples %s: %w", path, err)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("classifier examples %s: no categories", path)
	}
	for category, names := range examples {
		if !Valid(category) || category == Unknown {
			return nil, fmt.Errorf("classifier examples %s: unknown category %q", path, category)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("classifier examples %s: category %q has no examples", path, category)
		}
	}
	return examples, nil
}

type vector [embeddingDims]float64

type example struct {
	category string
	name     string
	vec      vector
}

// Embedding classifies by nearest example: texts are embedded as hashed character
// trigram vectors and compared by cosine similarity.
type Embedding struct {
	examples []example
	minScore float64
}

// NewEmbedding embeds examples once. Iteration follows Categories order so ties are deterministic.
func NewEmbedding(examples map[string][]string) *Embedding {
	e := &Embedding{minScore: DefaultMinScore}
	for _, category := range Categories {
		names := append([]string(nil), examples[category]...)
		sort.Strings(names)
		for _, name := range names {
			e.examples = append(e.examples, example{category: category, name: name, vec: embed(name)})
		}
	}
	return e
}

// WithMinScore returns a copy of e using minScore as the Unknown cut-off.
func (e *Embedding) WithMinScore(minScore float64) *Embedding {
	cp := *e
	cp.minScore = minScore
	return &cp
}

func (e *Embedding) Classify(ctx context.Context, name, image string) (string, error) {
	if err := ctx.Err(); err != nil {
		return Unknown, err
	}
	query := name
	if image != "" {
		query += " " + imageBase(image)
	}
	category, _ := e.nearest(embed(query))
	return category, nil
}

func (e *Embedding) nearest(q vector) (string, float64) {
	best, bestScore := Unknown, -1.0
	for i := range e.examples {
		if s := cosine(&q, &e.examples[i].vec); s > bestScore {
			best, bestScore = e.examples[i].category, s
		}
	}
	if bestScore <= e.minScore {
		return Unknown, bestScore
	}
	return best, bestScore
}

var separators = strings.NewReplacer("-", " ", "_", " ", ".", " ", "/", " ", ":", " ")

// embed returns the L2-normalized trigram histogram of text. Words are
// space-padded so prefixes and suffixes carry weight.
func embed(text string) vector {
	var v vector
	norm := " " + strings.Join(strings.Fields(separators.Replace(strings.ToLower(text))), " ") + " "
	b := []byte(norm)
	h := fnv.New32a()
	for i := 0; i+3 <= len(b); i++ {
		h.Reset()
		_, _ = h.Write(b[i : i+3])
		v[h.Sum32()%embeddingDims]++
	}
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] /= n
	}
	return v
}

func cosine(a, b *vector) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}
