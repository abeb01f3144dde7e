package topology

import (
	"fmt"

	"github.com/vanshmadan/gke-connect/internal/models"
)

// ValidateTree checks the structural guarantees of a built tree: every (kind, name)
// appears at most once and only top-level nodes carry a category.
func ValidateTree(nodes []models.ResourceNode) error {
	seen := make(map[models.ResourceKind]map[string]bool)
	var err error
	models.Walk(nodes, func(n *models.ResourceNode, depth int) {
		if err != nil {
			return
		}
		if seen[n.Kind] == nil {
			seen[n.Kind] = make(map[string]bool)
		}
		if seen[n.Kind][n.Name] {
			err = fmt.Errorf("%s %q appears more than once", n.Kind, n.Name)
			return
		}
		seen[n.Kind][n.Name] = true
		if depth > 0 && n.Category != "" {
			err = fmt.Errorf("nested %s %q carries category %q", n.Kind, n.Name, n.Category)
		}
	})
	return err
}

// Count returns the number of nodes per kind across the whole tree.
func Count(nodes []models.ResourceNode) map[models.ResourceKind]int {
	counts := make(map[models.ResourceKind]int)
	models.Walk(nodes, func(n *models.ResourceNode, _ int) {
		counts[n.Kind]++
	})
	return counts
}
