package dflow

import (
	"encoding/json"
	"fmt"
)

// BrokenPipeError reports a pipe whose endpoints were not both present
// at insertion time.
type BrokenPipeError struct {
	Pipe Pipe
}

func (e *BrokenPipeError) Error() string {
	return fmt.Sprintf("dflow: broken pipe from=%s to=%s", PinID(e.Pipe.From), PinID(e.Pipe.To))
}

// MarshalJSON emits the wire shape {"errorName": "DflowErrorBrokenPipe", "pipe": {...}}.
func (e *BrokenPipeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"errorName": "DflowErrorBrokenPipe",
		"pipe": map[string]string{
			"from": PinID(e.Pipe.From),
			"to":   PinID(e.Pipe.To),
		},
	})
}

// NodeExecutionError wraps an error thrown by a node's callable or by a
// nested sub-graph. A failing sub-graph is re-wrapped at every parent
// level, preserving the nested message text through the error chain.
type NodeExecutionError struct {
	NodeID   string
	NodeName string
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("dflow: node %s (%s): %v", e.NodeID, e.NodeName, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// MarshalJSON emits {"errorName": "DflowErrorNodeExecution", ...}.
func (e *NodeExecutionError) MarshalJSON() ([]byte, error) {
	message := ""
	if e.Err != nil {
		message = e.Err.Error()
	}
	return json.Marshal(map[string]any{
		"errorName":        "DflowErrorNodeExecution",
		"nodeId":           e.NodeID,
		"nodeName":         e.NodeName,
		"nodeErrorMessage": message,
	})
}

// NodeNotFoundError reports a node id absent from the graph.
type NodeNotFoundError struct {
	NodeID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("dflow: node not found: %s", e.NodeID)
}

// MarshalJSON emits {"errorName": "DflowErrorNodeNotFound", "nodeId": ...}.
func (e *NodeNotFoundError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"errorName": "DflowErrorNodeNotFound",
		"nodeId":    e.NodeID,
	})
}

// NodeOverrideError reports an attempt to rebind a name already taken by
// an I/O marker, a callable, or a sub-graph template.
type NodeOverrideError struct {
	NodeName string
}

func (e *NodeOverrideError) Error() string {
	return fmt.Sprintf("dflow: node name already bound: %s", e.NodeName)
}

// MarshalJSON emits {"errorName": "DflowErrorNodeOverride", "nodeName": ...}.
func (e *NodeOverrideError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"errorName": "DflowErrorNodeOverride",
		"nodeName":  e.NodeName,
	})
}
