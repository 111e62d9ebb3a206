// Package env implements the graph construction environment: which actions
// are legal at a state and what state each action leads to. States stay
// connected throughout (plus the empty graph as the unique start state).
package env

import (
	"github.com/pkg/errors"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/gfn"
)

// GraphEnv builds node-colored undirected graphs up to a node bound.
//
// Forward actions from a state X:
//
//	Stop        always legal; terminates at X.
//	AddNode     legal while X has fewer than MaxNodes nodes. A new node of
//	            any color is attached by an edge to an existing node; from
//	            the empty graph the first node is placed unattached.
//	AddEdge     legal for any currently non-adjacent node pair.
//
// Backward actions invert these and must preserve connectivity.
type GraphEnv struct {
	maxNodes  int
	numColors int
}

// New returns an environment over graphs of at most maxNodes nodes with
// numColors node colors. Bounds follow colgraph's fixed capacities.
func New(maxNodes, numColors int) (*GraphEnv, error) {
	if maxNodes < 1 || maxNodes > colgraph.MaxNodes {
		return nil, errors.Errorf("env: max nodes %d out of range [1, %d]", maxNodes, colgraph.MaxNodes)
	}
	if numColors < 1 || numColors > colgraph.MaxColors {
		return nil, errors.Errorf("env: num colors %d out of range [1, %d]", numColors, colgraph.MaxColors)
	}
	return &GraphEnv{
		maxNodes:  maxNodes,
		numColors: numColors,
	}, nil
}

func (env *GraphEnv) MaxNodes() int {
	return env.maxNodes
}

func (env *GraphEnv) NumColors() int {
	return env.numColors
}

// Masks returns the forward action masks at X.
func (env *GraphEnv) Masks(X *colgraph.Graph) gfn.ActionMasks {
	n := X.NumNodes()
	m := gfn.ActionMasks{
		Stop:      true,
		NumColors: env.numColors,
	}
	if n < env.maxNodes {
		m.NodeRows = n
		if n == 0 {
			m.NodeRows = 1
		}
		m.AddNode = make([]bool, m.NodeRows*env.numColors)
		for i := range m.AddNode {
			m.AddNode[i] = true
		}
	}
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if !X.HasEdge(u, v) {
				m.EdgePairs = append(m.EdgePairs, [2]int32{int32(u), int32(v)})
			}
		}
	}
	return m
}

// ReverseMasks returns the backward action masks at X. A node may be
// removed only when it is a leaf (or the sole node); an edge may be removed
// only when the graph stays connected without it.
func (env *GraphEnv) ReverseMasks(X *colgraph.Graph) gfn.ReverseMasks {
	n := X.NumNodes()
	rm := gfn.ReverseMasks{
		RemoveNode: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		rm.RemoveNode[i] = n == 1 || X.Degree(i) == 1
	}
	edges := X.Edges()
	rm.RemoveEdge = make([]bool, len(edges))
	for i, e := range edges {
		rm.RemoveEdge[i] = X.ConnectedWithoutEdge(int(e[0]), int(e[1]))
	}
	return rm
}

// Step applies act to X and returns the successor state. X is not
// modified. Illegal actions return ErrIllegalAction.
func (env *GraphEnv) Step(X *colgraph.Graph, act gfn.Action) (*colgraph.Graph, error) {
	switch act.Type {

	case gfn.ActionStop:
		return X, nil

	case gfn.ActionAddNode:
		n := X.NumNodes()
		if n >= env.maxNodes || int(act.Color) >= env.numColors {
			return nil, errors.Wrapf(gfn.ErrIllegalAction, "%v", act)
		}
		Y := colgraph.New(X)
		node, err := Y.AddNode(act.Color)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			if act.Target < 0 || int(act.Target) >= n {
				return nil, errors.Wrapf(gfn.ErrIllegalAction, "%v", act)
			}
			if err := Y.AddEdge(int(act.Target), node); err != nil {
				return nil, err
			}
		}
		return Y, nil

	case gfn.ActionAddEdge:
		u, v := int(act.U), int(act.V)
		n := X.NumNodes()
		if u < 0 || v < 0 || u >= n || v >= n || u == v || X.HasEdge(u, v) {
			return nil, errors.Wrapf(gfn.ErrIllegalAction, "%v", act)
		}
		Y := colgraph.New(X)
		if err := Y.AddEdge(u, v); err != nil {
			return nil, err
		}
		return Y, nil

	case gfn.ActionRemoveNode:
		n := X.NumNodes()
		i := int(act.Target)
		if i < 0 || i >= n || (n > 1 && X.Degree(i) != 1) {
			return nil, errors.Wrapf(gfn.ErrIllegalAction, "%v", act)
		}
		Y := colgraph.New(X)
		if err := Y.RemoveNode(i); err != nil {
			return nil, err
		}
		return Y, nil

	case gfn.ActionRemoveEdge:
		u, v := int(act.U), int(act.V)
		if !X.HasEdge(u, v) || !X.ConnectedWithoutEdge(u, v) {
			return nil, errors.Wrapf(gfn.ErrIllegalAction, "%v", act)
		}
		Y := colgraph.New(X)
		if err := Y.RemoveEdge(u, v); err != nil {
			return nil, err
		}
		return Y, nil
	}

	return nil, errors.Wrapf(gfn.ErrIllegalAction, "unknown action type %d", act.Type)
}
