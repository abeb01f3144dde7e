// Package validate provides input validation for API path and query parameters.
package validate

import (
	"regexp"
	"strconv"
	"strings"
)

// NamespaceMaxLen is the maximum namespace length (DNS-1123 label).
const NamespaceMaxLen = 63

// MaxTailLines caps the number of log lines requested per pod.
const MaxTailLines = 5000

// K8s name regex: DNS subdomain (RFC 1123) — lowercase alphanumeric, '-' or '.', max 253 for names.
var k8sNameRe = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// Namespaces are DNS-1123 labels: no dots.
var k8sLabelRe = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Namespace validates an environment name: a non-empty DNS-1123 label.
func Namespace(ns string) bool {
	if ns == "" || len(ns) > NamespaceMaxLen {
		return false
	}
	return k8sLabelRe.MatchString(ns)
}

// Name validates resource name: valid DNS subdomain.
func Name(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	return k8sNameRe.MatchString(strings.ToLower(name))
}

// TailLines parses the tail query parameter. Empty returns def; values outside 1..MaxTailLines are rejected.
func TailLines(raw string, def int64) (int64, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 || n > MaxTailLines {
		return 0, false
	}
	return n, true
}
