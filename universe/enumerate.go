package universe

import (
	"sort"

	"github.com/plan-systems/klog"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/gfn"
)

// Enumerate walks the full forward closure of the construction process
// from the empty graph and returns an index of every reachable
// isomorphism class, with ids assigned in non-decreasing construction
// rank. Rank-ordered ids give the transition graph its topological
// property: every non-stop action leads to a strictly larger id.
func Enumerate(e gfn.Environment) (*StateIndex, error) {
	scratch := NewStateIndex()
	frontier := []*colgraph.Graph{colgraph.New(nil)}
	scratch.Register(frontier[0])

	for len(frontier) > 0 {
		X := frontier[0]
		frontier = frontier[1:]

		for _, Y := range expand(e, X) {
			before := scratch.Len()
			if scratch.Register(Y) == int32(before) {
				frontier = append(frontier, Y)
				if scratch.Len()%10000 == 0 {
					klog.V(2).Infof("enumerated %d classes, frontier %d", scratch.Len(), len(frontier))
				}
			}
		}
	}

	// Reassign ids sorted by rank. BFS discovery order breaks ties, so
	// enumeration is fully deterministic.
	states := make([]*colgraph.Graph, scratch.Len())
	copy(states, scratch.states)
	sort.SliceStable(states, func(i, j int) bool {
		return stateRank(states[i]) < stateRank(states[j])
	})
	return Reindex(states), nil
}

// expand returns the successor of every legal non-stop action at X.
func expand(e gfn.Environment, X *colgraph.Graph) []*colgraph.Graph {
	var out []*colgraph.Graph
	m := e.Masks(X)

	for r := 0; r < m.NodeRows; r++ {
		for c := 0; c < m.NumColors; c++ {
			if !m.AddNodeAllowed(r, colgraph.Color(c)) {
				continue
			}
			Y, err := e.Step(X, gfn.Action{
				Type:   gfn.ActionAddNode,
				Target: int32(r),
				Color:  colgraph.Color(c),
			})
			if err != nil {
				panic(err) // masks and Step disagree
			}
			out = append(out, Y)
		}
	}
	for _, pair := range m.EdgePairs {
		Y, err := e.Step(X, gfn.Action{Type: gfn.ActionAddEdge, U: pair[0], V: pair[1]})
		if err != nil {
			panic(err)
		}
		out = append(out, Y)
	}
	return out
}
