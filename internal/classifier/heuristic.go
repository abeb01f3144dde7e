package classifier

import (
	"context"
	"strings"
)

type rule struct {
	category string
	keywords []string
}

// Checked in order; the first rule with a keyword contained in the text wins.
var rules = []rule{
	{API, []string{"api", "service", "auth", "gateway"}},
	{DB, []string{"db", "postgres", "mysql", "mongo"}},
	{Cache, []string{"cache", "redis", "memcached"}},
	{Frontend, []string{"front", "web", "ui"}},
	{Worker, []string{"worker", "job", "cron"}},
	{Proxy, []string{"proxy", "nginx", "haproxy", "envoy"}},
}

// Heuristic classifies by keyword rules on the lower-cased name, then on the image basename.
type Heuristic struct{}

func (Heuristic) Classify(ctx context.Context, name, image string) (string, error) {
	if err := ctx.Err(); err != nil {
		return Unknown, err
	}
	if c := matchRules(strings.ToLower(name)); c != Unknown {
		return c, nil
	}
	if image != "" {
		return matchRules(imageBase(image)), nil
	}
	return Unknown, nil
}

func matchRules(text string) string {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return Unknown
}
