package models

import "time"

// ResourceKind is the Kubernetes kind of a node in the environment topology.
type ResourceKind string

const (
	KindService     ResourceKind = "Service"
	KindDeployment  ResourceKind = "Deployment"
	KindStatefulSet ResourceKind = "StatefulSet"
	KindPod         ResourceKind = "Pod"
)

// ResourceNode is one resource in the environment topology tree.
// Children in Associated are owned exclusively by their parent.
type ResourceNode struct {
	Kind                   ResourceKind   `json:"kind"`
	Name                   string         `json:"name"`
	Status                 string         `json:"status"`
	CreatedAt              time.Time      `json:"createdAt"`
	PersistentVolumeClaims []string       `json:"persistentVolumeClaims"`
	Ports                  []string       `json:"ports"`
	ClusterIP              string         `json:"clusterIP"`
	Category               string         `json:"category,omitempty"` // top-level nodes only
	Associated             []ResourceNode `json:"associated"`
}

// NewResourceNode returns a node with all list fields initialized so they
// serialize as [] rather than null.
func NewResourceNode(kind ResourceKind, name, status string, createdAt time.Time) ResourceNode {
	return ResourceNode{
		Kind:                   kind,
		Name:                   name,
		Status:                 status,
		CreatedAt:              createdAt,
		PersistentVolumeClaims: []string{},
		Ports:                  []string{},
		Associated:             []ResourceNode{},
	}
}

// Walk calls fn for every node in the tree rooted at nodes, parents before
// children. depth is 0 for top-level nodes.
func Walk(nodes []ResourceNode, fn func(node *ResourceNode, depth int)) {
	var walk func([]ResourceNode, int)
	walk = func(list []ResourceNode, depth int) {
		for i := range list {
			fn(&list[i], depth)
			walk(list[i].Associated, depth+1)
		}
	}
	walk(nodes, 0)
}

// EnvironmentResources is the body of a synchronous topology response.
type EnvironmentResources struct {
	Resources []ResourceNode `json:"resources"`
}
