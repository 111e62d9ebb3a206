// Package universe enumerates the reachable state space of the graph
// construction process and assigns each isomorphism class a stable id.
package universe

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/pkg/errors"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/gfn"
)

// StateIndex maps graphs to dense ids, one id per isomorphism class.
//
// Lookup goes through a refinement-hash bucket first and falls back to
// exact isomorphism checks only within the bucket, so collisions cost a
// few pairwise checks rather than correctness. The treemap keeps bucket
// iteration deterministic, which the enumerator relies on.
type StateIndex struct {
	buckets *treemap.Map // uint64 hash -> []int32 state ids
	states  []*colgraph.Graph
	ranks   []int32 // nodes*64 + edges, non-decreasing in id after Enumerate
}

func NewStateIndex() *StateIndex {
	return &StateIndex{
		buckets: treemap.NewWith(utils.UInt64Comparator),
	}
}

// Len returns the number of registered isomorphism classes.
func (idx *StateIndex) Len() int {
	return len(idx.states)
}

// State returns the representative graph of class id.
func (idx *StateIndex) State(id int32) *colgraph.Graph {
	return idx.states[id]
}

// Rank orders classes by construction progress: strictly more nodes, or
// equal nodes and more edges, means a strictly larger rank.
func (idx *StateIndex) Rank(id int32) int32 {
	return idx.ranks[id]
}

func stateRank(X *colgraph.Graph) int32 {
	return int32(X.NumNodes())*64 + int32(X.NumEdges())
}

// Register returns the id of X's isomorphism class, adding a new class if
// X matches no registered state.
func (idx *StateIndex) Register(X *colgraph.Graph) int32 {
	hash := X.CanonicalHash()
	var ids []int32
	if v, found := idx.buckets.Get(hash); found {
		ids = v.([]int32)
		for _, id := range ids {
			if idx.states[id].IsIsomorphic(X) {
				return id
			}
		}
	}
	id := int32(len(idx.states))
	idx.states = append(idx.states, X)
	idx.ranks = append(idx.ranks, stateRank(X))
	idx.buckets.Put(hash, append(ids, id))
	return id
}

// Lookup returns the id of X's class, or ErrStateNotFound if X was never
// registered.
func (idx *StateIndex) Lookup(X *colgraph.Graph) (int32, error) {
	if v, found := idx.buckets.Get(X.CanonicalHash()); found {
		for _, id := range v.([]int32) {
			if idx.states[id].IsIsomorphic(X) {
				return id, nil
			}
		}
	}
	return 0, errors.Wrapf(gfn.ErrStateNotFound, "graph %q", X.String())
}

// LookupOr returns the id of X's class, or fallback when X is unknown.
func (idx *StateIndex) LookupOr(X *colgraph.Graph, fallback int32) int32 {
	if id, err := idx.Lookup(X); err == nil {
		return id
	}
	return fallback
}

// Reindex rebuilds the index from a state list, preserving list order as
// ids. Used when loading a persisted universe.
func Reindex(states []*colgraph.Graph) *StateIndex {
	idx := NewStateIndex()
	for _, X := range states {
		idx.Register(X)
	}
	return idx
}
