// Package gfn declares the shared vocabulary of the exact-verification
// engine: construction actions, per-state legality masks, the environment
// collaborator interface, sentinel errors, and log-domain arithmetic.
package gfn

import (
	"fmt"

	"github.com/lazaratan/gflownet-generalization/colgraph"
)

// ActionType tags the kind of a construction (or deconstruction) action.
type ActionType int32

const (
	ActionStop ActionType = iota
	ActionAddNode
	ActionAddEdge
	ActionRemoveNode
	ActionRemoveEdge
)

func (t ActionType) String() string {
	switch t {
	case ActionStop:
		return "Stop"
	case ActionAddNode:
		return "AddNode"
	case ActionAddEdge:
		return "AddEdge"
	case ActionRemoveNode:
		return "RemoveNode"
	case ActionRemoveEdge:
		return "RemoveEdge"
	default:
		return fmt.Sprintf("ActionType(%d)", int32(t))
	}
}

// Action is one step of the sequential construction process.
//
//	Stop        terminates at the current state; no fields used.
//	AddNode     appends a node of Color attached to node Target
//	            (Target ignored when the state is the empty graph).
//	AddEdge     connects the existing nodes U and V.
//	RemoveNode  deletes node Target (reverse of AddNode).
//	RemoveEdge  disconnects U and V (reverse of AddEdge).
type Action struct {
	Type   ActionType
	Target int32
	Color  colgraph.Color
	U, V   int32
}

func (a Action) String() string {
	switch a.Type {
	case ActionAddNode:
		return fmt.Sprintf("AddNode(%d:%d)", a.Target, a.Color)
	case ActionAddEdge:
		return fmt.Sprintf("AddEdge(%d-%d)", a.U, a.V)
	case ActionRemoveNode:
		return fmt.Sprintf("RemoveNode(%d)", a.Target)
	case ActionRemoveEdge:
		return fmt.Sprintf("RemoveEdge(%d-%d)", a.U, a.V)
	default:
		return a.Type.String()
	}
}

// ActionMasks lists the legal forward actions at one state.
//
// AddNode is a row-major (NodeRows x NumColors) mask: row r marks colors a
// new node attached at node r may take. The empty graph exposes a single
// attach row. NodeRows is 0 when the node bound is reached.
type ActionMasks struct {
	Stop      bool
	NodeRows  int
	NumColors int
	AddNode   []bool
	EdgePairs [][2]int32 // currently non-adjacent node pairs (u < v)
}

// AddNodeAllowed reports whether a node of color c may be attached at row r.
func (m *ActionMasks) AddNodeAllowed(r int, c colgraph.Color) bool {
	return r < m.NodeRows && int(c) < m.NumColors && m.AddNode[r*m.NumColors+int(c)]
}

// NumLegal counts the legal actions the masks expose.
func (m *ActionMasks) NumLegal() int {
	n := 0
	if m.Stop {
		n++
	}
	for _, ok := range m.AddNode {
		if ok {
			n++
		}
	}
	return n + len(m.EdgePairs)
}

// ReverseMasks lists the legal backward actions at one state.
// RemoveEdge is aligned with colgraph.Graph.Edges() ordering.
type ReverseMasks struct {
	RemoveNode []bool
	RemoveEdge []bool
}

// Environment is the deterministic construction-process collaborator: it
// owns action legality and the transition function. Step must be total over
// actions its masks mark legal.
type Environment interface {
	MaxNodes() int
	NumColors() int
	Masks(X *colgraph.Graph) ActionMasks
	ReverseMasks(X *colgraph.Graph) ReverseMasks
	Step(X *colgraph.Graph, act Action) (*colgraph.Graph, error)
}
