package topology

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/vanshmadan/gke-connect/internal/models"
)

// claimRegistry records which resources already have a place in the tree being built.
// One registry per build; never shared.
type claimRegistry struct {
	claimed map[models.ResourceKind]sets.Set[string]
}

func newClaimRegistry() *claimRegistry {
	return &claimRegistry{claimed: map[models.ResourceKind]sets.Set[string]{
		models.KindPod:         sets.New[string](),
		models.KindDeployment:  sets.New[string](),
		models.KindStatefulSet: sets.New[string](),
	}}
}

// claim marks (kind, name) as placed. It returns false if it already was.
func (r *claimRegistry) claim(kind models.ResourceKind, name string) bool {
	s, ok := r.claimed[kind]
	if !ok {
		s = sets.New[string]()
		r.claimed[kind] = s
	}
	if s.Has(name) {
		return false
	}
	s.Insert(name)
	return true
}
