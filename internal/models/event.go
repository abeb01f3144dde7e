package models

import "encoding/json"

// Stream message types delivered to a topology subscriber.
const (
	StreamMessageUpdate = "update"
	StreamMessageError  = "error"
)

// StreamMessage is one message on a live topology subscription: either a full
// refreshed tree or a terminal error.
type StreamMessage struct {
	Type      string
	Resources []ResourceNode
	Message   string
}

// NewUpdateMessage wraps a freshly built tree.
func NewUpdateMessage(resources []ResourceNode) StreamMessage {
	if resources == nil {
		resources = []ResourceNode{}
	}
	return StreamMessage{Type: StreamMessageUpdate, Resources: resources}
}

// NewErrorMessage builds the terminal error message of a stream.
func NewErrorMessage(message string) StreamMessage {
	return StreamMessage{Type: StreamMessageError, Message: message}
}

// IsError reports whether m terminates the stream with an error.
func (m StreamMessage) IsError() bool {
	return m.Type == StreamMessageError
}

type updateWire struct {
	Type      string         `json:"type"`
	Resources []ResourceNode `json:"resources"`
}

type errorWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MarshalJSON emits {"type":"update","resources":[...]} or
// {"type":"error","message":"..."}; an update always carries resources.
func (m StreamMessage) MarshalJSON() ([]byte, error) {
	if m.IsError() {
		return json.Marshal(errorWire{Type: m.Type, Message: m.Message})
	}
	resources := m.Resources
	if resources == nil {
		resources = []ResourceNode{}
	}
	return json.Marshal(updateWire{Type: StreamMessageUpdate, Resources: resources})
}

// UnmarshalJSON accepts either wire shape.
func (m *StreamMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string         `json:"type"`
		Resources []ResourceNode `json:"resources"`
		Message   string         `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Type = raw.Type
	m.Resources = raw.Resources
	m.Message = raw.Message
	return nil
}
