package models

import "time"

// PodLog is the log tail of one pod owned by a controller.
type PodLog struct {
	Pod   string `json:"pod"`
	Log   string `json:"log,omitempty"`
	Error string `json:"error,omitempty"`
}

// ControllerLogs aggregates the log tails of every pod of a controller.
type ControllerLogs struct {
	Namespace  string   `json:"namespace"`
	Controller string   `json:"controller"`
	TailLines  int64    `json:"tail_lines"`
	Pods       []PodLog `json:"pods"`
}

// Workload actions supported on Deployments.
const (
	WorkloadActionStart    = "start"
	WorkloadActionStop     = "stop"
	WorkloadActionRedeploy = "redeploy"
)

// WorkloadAction is the result of a start/stop/redeploy request.
type WorkloadAction struct {
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Replicas  *int32    `json:"replicas,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}
