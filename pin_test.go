package dflow_test

import (
	"testing"

	dflow "github.com/fibo/PoC-dflow"
)

func TestPinID(t *testing.T) {
	tests := []struct {
		name string
		pin  dflow.Pin
		want string
	}{
		{name: "position zero is the bare node id", pin: dflow.Pin{NodeID: "a"}, want: "a"},
		{name: "positive position", pin: dflow.Pin{NodeID: "a", Position: 1}, want: "a,1"},
		{name: "two digit position", pin: dflow.Pin{NodeID: "node", Position: 12}, want: "node,12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dflow.PinID(tt.pin); got != tt.want {
				t.Errorf("PinID(%+v) = %q, want %q", tt.pin, got, tt.want)
			}
		})
	}
}

func TestParsePinID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want dflow.Pin
	}{
		{name: "bare node id", id: "a", want: dflow.Pin{NodeID: "a"}},
		{name: "with position", id: "a,2", want: dflow.Pin{NodeID: "a", Position: 2}},
		{name: "explicit zero collapses", id: "a,0", want: dflow.Pin{NodeID: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dflow.ParsePinID(tt.id); got != tt.want {
				t.Errorf("ParsePinID(%q) = %+v, want %+v", tt.id, got, tt.want)
			}
		})
	}
}

func TestPinRoundTrip(t *testing.T) {
	pins := []dflow.Pin{
		{NodeID: "x"},
		{NodeID: "x", Position: 1},
		{NodeID: "long-node-id", Position: 7},
	}
	for _, pin := range pins {
		if got := dflow.ParsePinID(dflow.PinID(pin)); got != pin {
			t.Errorf("round trip of %+v gave %+v", pin, got)
		}
	}
}

func TestParentNodeIDs(t *testing.T) {
	pipes := []dflow.Pipe{
		{From: dflow.Pin{NodeID: "a"}, To: dflow.Pin{NodeID: "c"}},
		{From: dflow.Pin{NodeID: "b"}, To: dflow.Pin{NodeID: "c", Position: 1}},
		{From: dflow.Pin{NodeID: "a", Position: 1}, To: dflow.Pin{NodeID: "c", Position: 2}},
		{From: dflow.Pin{NodeID: "a"}, To: dflow.Pin{NodeID: "d"}},
	}

	got := dflow.ParentNodeIDs("c", pipes)
	want := []string{"a", "b"}
	if len(got) != len(want) {
		t.Fatalf("ParentNodeIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParentNodeIDs[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if parents := dflow.ParentNodeIDs("a", pipes); len(parents) != 0 {
		t.Errorf("ParentNodeIDs of a source-only node = %v, want none", parents)
	}
}
