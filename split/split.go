// Package split carves the state universe into train and test sets whose
// test states are structurally clustered, for probing generalization of
// learned samplers rather than random-holdout memorization.
package split

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/gfn"
	"github.com/lazaratan/gflownet-generalization/universe"
)

// Split is a partition of state ids. Train order is shuffled; Test is in
// ascending id order.
type Split struct {
	Train []int32
	Test  []int32
}

// Generator derives splits from an environment and its complete index.
type Generator struct {
	env gfn.Environment
	idx *universe.StateIndex
}

func NewGenerator(e gfn.Environment, idx *universe.StateIndex) *Generator {
	return &Generator{env: e, idx: idx}
}

// BackwardTrajectory holds out backward walks: starting from uniformly
// drawn full-size states, walk random legal backward actions while the
// state keeps more than MaxNodes-2 nodes, collecting every state visited.
// ratio is the train fraction; walks repeat until the test set reaches
// (1-ratio) of the universe.
func (g *Generator) BackwardTrajectory(ratio float64, seed int64) (*Split, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, errors.Wrapf(gfn.ErrBadSplitRatio, "%v", ratio)
	}
	total := g.idx.Len()
	want := int((1 - ratio) * float64(total))
	maxNodes := g.env.MaxNodes()
	floor := maxNodes - 2

	eligible := 0
	for id := 0; id < total; id++ {
		if g.idx.State(int32(id)).NumNodes() > floor {
			eligible++
		}
	}
	if want > eligible {
		return nil, errors.Wrapf(gfn.ErrSplitExhausted,
			"want %d test states, only %d have more than %d nodes", want, eligible, floor)
	}

	rng := rand.New(rand.NewSource(seed))
	test := map[int32]bool{}
	for len(test) < want {
		id := int32(rng.Intn(total))
		s := g.idx.State(id)
		if s.NumNodes() < maxNodes {
			continue
		}
		for s.NumNodes() > floor {
			test[id] = true
			acts := backwardActions(g.env, s)
			if len(acts) == 0 {
				break
			}
			act := acts[rng.Intn(len(acts))]
			sp, err := g.env.Step(s, act)
			if err != nil {
				return nil, err
			}
			id, err = g.idx.Lookup(sp)
			if err != nil {
				return nil, err
			}
			// Continue from the class representative so masks line up.
			s = g.idx.State(id)
		}
	}
	return assemble(test, total, rng), nil
}

// Subtree holds out whole forward-reachable subtrees rooted at dense
// states of MaxNodes-1 nodes. Roots are drawn at random from states
// meeting a minimum edge count, which relaxes whenever the pool runs
// dry, so the densest subtrees are held out first.
func (g *Generator) Subtree(ratio float64, seed int64) (*Split, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, errors.Wrapf(gfn.ErrBadSplitRatio, "%v", ratio)
	}
	total := g.idx.Len()
	want := int((1 - ratio) * float64(total))
	rootNodes := g.env.MaxNodes() - 1

	rng := rand.New(rand.NewSource(seed))
	test := map[int32]bool{}
	var pool []int32
	edgeLimit := 11

	for len(test) < want {
		fresh := 0
		for _, id := range pool {
			if !test[id] {
				fresh++
			}
		}
		if fresh == 0 || len(pool) == 0 {
			pool = pool[:0]
			for id := 0; id < total; id++ {
				s := g.idx.State(int32(id))
				if s.NumNodes() == rootNodes && s.NumEdges() >= edgeLimit {
					pool = append(pool, int32(id))
				}
			}
			edgeLimit--
			if len(pool) == 0 {
				if edgeLimit < -1 {
					return nil, errors.Wrapf(gfn.ErrSplitExhausted,
						"want %d test states, subtrees cover %d", want, len(test))
				}
				continue
			}
		}
		rootAt := rng.Intn(len(pool))
		root := pool[rootAt]
		pool = append(pool[:rootAt], pool[rootAt+1:]...)
		if test[root] {
			continue
		}

		stack := []int32{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if test[id] {
				continue
			}
			test[id] = true
			for _, dst := range g.successors(id) {
				if !test[dst] {
					stack = append(stack, dst)
				}
			}
		}
	}
	return assemble(test, total, rng), nil
}

// successors returns the distinct destination classes of every legal
// non-stop action at id.
func (g *Generator) successors(id int32) []int32 {
	X := g.idx.State(id)
	m := g.env.Masks(X)
	seen := map[int32]bool{}
	var out []int32

	visit := func(act gfn.Action) {
		Y, err := g.env.Step(X, act)
		if err != nil {
			panic(err) // masks and Step disagree
		}
		dst, err := g.idx.Lookup(Y)
		if err != nil {
			panic(err) // index must be complete
		}
		if !seen[dst] {
			seen[dst] = true
			out = append(out, dst)
		}
	}

	for r := 0; r < m.NodeRows; r++ {
		for c := 0; c < m.NumColors; c++ {
			if m.AddNodeAllowed(r, colgraph.Color(c)) {
				visit(gfn.Action{Type: gfn.ActionAddNode, Target: int32(r), Color: colgraph.Color(c)})
			}
		}
	}
	for _, pair := range m.EdgePairs {
		visit(gfn.Action{Type: gfn.ActionAddEdge, U: pair[0], V: pair[1]})
	}
	return out
}

// backwardActions enumerates the legal backward actions at s, node
// removals first.
func backwardActions(e gfn.Environment, s *colgraph.Graph) []gfn.Action {
	rm := e.ReverseMasks(s)
	var acts []gfn.Action
	for i, ok := range rm.RemoveNode {
		if ok {
			acts = append(acts, gfn.Action{Type: gfn.ActionRemoveNode, Target: int32(i)})
		}
	}
	edges := s.Edges()
	for i, ok := range rm.RemoveEdge {
		if ok {
			acts = append(acts, gfn.Action{Type: gfn.ActionRemoveEdge, U: edges[i][0], V: edges[i][1]})
		}
	}
	return acts
}

// assemble builds the final split: test in ascending id order, train
// shuffled.
func assemble(test map[int32]bool, total int, rng *rand.Rand) *Split {
	sp := &Split{}
	for id := int32(0); id < int32(total); id++ {
		if test[id] {
			sp.Test = append(sp.Test, id)
		} else {
			sp.Train = append(sp.Train, id)
		}
	}
	sort.Slice(sp.Test, func(i, j int) bool { return sp.Test[i] < sp.Test[j] })
	rng.Shuffle(len(sp.Train), func(i, j int) {
		sp.Train[i], sp.Train[j] = sp.Train[j], sp.Train[i]
	})
	return sp
}
