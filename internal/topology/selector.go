package topology

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// Selector is an equality-only label selector. An empty Selector matches nothing,
// unlike labels.Everything.
type Selector map[string]string

// SelectorFromService returns the Service's pod selector.
func SelectorFromService(svc *corev1.Service) Selector {
	if svc == nil {
		return nil
	}
	return Selector(svc.Spec.Selector)
}

// SelectorFromLabelSelector returns the matchLabels of a controller selector.
// Match expressions are ignored.
func SelectorFromLabelSelector(ls *metav1.LabelSelector) Selector {
	if ls == nil {
		return nil
	}
	return Selector(ls.MatchLabels)
}

// Empty reports whether the selector has no terms.
func (s Selector) Empty() bool {
	return len(s) == 0
}

// Matches reports whether every selector key is present in set with an equal value.
func (s Selector) Matches(set map[string]string) bool {
	if s.Empty() {
		return false
	}
	return labels.SelectorFromSet(labels.Set(s)).Matches(labels.Set(set))
}

// Match returns the candidates whose labels satisfy sel, in input order.
func Match[T metav1.Object](sel Selector, candidates []T) []T {
	if sel.Empty() {
		return nil
	}
	compiled := labels.SelectorFromSet(labels.Set(sel))
	var out []T
	for _, c := range candidates {
		if compiled.Matches(labels.Set(c.GetLabels())) {
			out = append(out, c)
		}
	}
	return out
}
