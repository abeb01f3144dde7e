package validate

import (
	"strings"
	"testing"
)

func TestNamespace(t *testing.T) {
	tests := []struct {
		ns   string
		want bool
	}{
		{"", false},
		{"default", true},
		{"kube-system", true},
		{"staging-2", true},
		{"Bad", false},
		{"bad_ns", false},
		{"with.dot", false},
		{"-leading", false},
		{strings.Repeat("a", NamespaceMaxLen), true},
		{strings.Repeat("a", NamespaceMaxLen+1), false},
	}
	for _, tt := range tests {
		if got := Namespace(tt.ns); got != tt.want {
			t.Errorf("Namespace(%q) = %v, want %v", tt.ns, got, tt.want)
		}
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", false},
		{"my-pod", true},
		{"nginx", true},
		{"api.v2", true},
		{"bad/name", false},
		{"bad name", false},
		{strings.Repeat("a", 254), false},
	}
	for _, tt := range tests {
		if got := Name(tt.name); got != tt.want {
			t.Errorf("Name(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"", 100, true},
		{"1", 1, true},
		{"250", 250, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"abc", 0, false},
		{"5001", 0, false},
	}
	for _, tt := range tests {
		got, ok := TailLines(tt.raw, 100)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("TailLines(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
