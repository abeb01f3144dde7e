package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/vanshmadan/gke-connect/internal/models"
)

const (
	formatTree = "tree"
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes nodes in format. json and yaml use the HTTP response shape.
func render(w io.Writer, format string, nodes []models.ResourceNode) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(models.EnvironmentResources{Resources: nonNil(nodes)}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		data, err := yaml.Marshal(models.EnvironmentResources{Resources: nonNil(nodes)})
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case formatTree:
		return renderTree(w, nodes)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// renderUpdate writes one streamed update; json updates are single-line stream messages.
func renderUpdate(w io.Writer, format string, nodes []models.ResourceNode) error {
	if format != formatJSON {
		return render(w, format, nodes)
	}
	data, err := json.Marshal(models.NewUpdateMessage(nodes))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderTree(w io.Writer, nodes []models.ResourceNode) error {
	if len(nodes) == 0 {
		_, err := fmt.Fprintln(w, "No resources found.")
		return err
	}
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(nodeLine(&n))
		b.WriteByte('\n')
		writeChildren(&b, n.Associated, "")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeChildren(b *strings.Builder, children []models.ResourceNode, prefix string) {
	for i := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		b.WriteString(prefix + branch + nodeLine(&children[i]) + "\n")
		writeChildren(b, children[i].Associated, prefix+indent)
	}
}

// nodeLine renders "Kind/name (status)" followed by whatever details the node carries.
func nodeLine(n *models.ResourceNode) string {
	parts := []string{fmt.Sprintf("%s/%s (%s)", n.Kind, n.Name, n.Status)}
	if n.Category != "" {
		parts = append(parts, "["+n.Category+"]")
	}
	if n.ClusterIP != "" {
		parts = append(parts, n.ClusterIP)
	}
	if len(n.Ports) > 0 {
		parts = append(parts, strings.Join(n.Ports, ","))
	}
	if len(n.PersistentVolumeClaims) > 0 {
		parts = append(parts, "pvc="+strings.Join(n.PersistentVolumeClaims, ","))
	}
	return strings.Join(parts, " ")
}

func nonNil(nodes []models.ResourceNode) []models.ResourceNode {
	if nodes == nil {
		return []models.ResourceNode{}
	}
	return nodes
}
