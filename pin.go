package dflow

import (
	"strconv"
	"strings"
)

// Pin addresses an input or output port on a node. Position 0 is the
// default port; its canonical string form is the bare node id.
type Pin struct {
	NodeID   string
	Position int
}

// Pipe is a directed edge from one node's output pin to another node's
// input pin.
type Pipe struct {
	From Pin
	To   Pin
}

// PinID returns the canonical string form of p: the node id alone for
// position 0, otherwise "{nodeId},{position}".
func PinID(p Pin) string {
	if p.Position == 0 {
		return p.NodeID
	}
	return p.NodeID + "," + strconv.Itoa(p.Position)
}

// ParsePinID is the exact inverse of PinID. A missing or zero position
// collapses to the bare node id form.
func ParsePinID(id string) Pin {
	i := strings.IndexByte(id, ',')
	if i < 0 {
		return Pin{NodeID: id}
	}
	position, _ := strconv.Atoi(id[i+1:])
	return Pin{NodeID: id[:i], Position: position}
}

// NodeIDOfPin returns the node id half of a pin.
func NodeIDOfPin(p Pin) string {
	return p.NodeID
}

// NodeIDsOfPipe returns the source and target node ids of a pipe.
func NodeIDsOfPipe(p Pipe) (source, target string) {
	return p.From.NodeID, p.To.NodeID
}

// ParentNodeIDs returns the ids of the nodes feeding nodeID through the
// given pipes, in pipe order, without duplicates.
func ParentNodeIDs(nodeID string, pipes []Pipe) []string {
	var parents []string
	seen := make(map[string]bool)
	for _, p := range pipes {
		if p.To.NodeID != nodeID {
			continue
		}
		if seen[p.From.NodeID] {
			continue
		}
		seen[p.From.NodeID] = true
		parents = append(parents, p.From.NodeID)
	}
	return parents
}
