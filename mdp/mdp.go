// Package mdp builds the transition multigraph of the construction process
// over isomorphism-class ids and runs exact dynamic programming over it:
// backward flow assignment, forward probability propagation, and the
// distribution metrics derived from them.
package mdp

import (
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/gfn"
	"github.com/lazaratan/gflownet-generalization/universe"
)

// EdgeRef is one transition edge of the multigraph. Src and Dst are state
// ids; Dst equal to the state count designates the illegal sink. Logit
// indexes the edge's score within its batch's logit vector.
type EdgeRef struct {
	Src   int32
	Dst   int32
	Logit int32
}

// CachedBatch covers the contiguous id range [First, First+Count). Its
// logit vector concatenates the legal actions of each state in order:
// Stop first, then AddNode entries row-major, then AddEdge pairs.
// ActFirst is the CSR offset table into that vector (length Count+1), and
// Acts holds the action behind every logit slot.
//
// Being lists the non-terminal edges in ascending Src order. Ending lists
// the terminating edges: Stop self-loops plus any transition leaving the
// state universe. EdgeBase is the global index of the batch's first edge.
type CachedBatch struct {
	First    int32
	Count    int32
	ActFirst []int32
	Acts     []gfn.Action
	Being    []EdgeRef
	Ending   []EdgeRef
	EdgeBase int32
}

// NumLogits returns the length of the logit vector a policy must produce
// for this batch.
func (b *CachedBatch) NumLogits() int {
	return len(b.Acts)
}

// MDP is the fully expanded transition graph of a construction
// environment over a complete state index. Ids are topologically ordered:
// every non-terminal edge leads to a strictly larger id.
type MDP struct {
	Env       gfn.Environment
	Index     *universe.StateIndex
	Batches   []*CachedBatch
	BatchSize int
	NumEdges  int

	// inEdges[dst] groups the in-edges of dst by source, sources
	// descending. Built once, reused by every flow recomputation.
	inEdges [][]predGroup
}

type predGroup struct {
	src   int32
	edges []int32 // global edge indices, parallel edges together
}

// NumStates returns the number of states, excluding the illegal sink.
func (m *MDP) NumStates() int {
	return m.Index.Len()
}

// SinkID returns the id of the illegal sink pseudo-state.
func (m *MDP) SinkID() int32 {
	return int32(m.Index.Len())
}

// Build expands every legal action of every state into the transition
// multigraph, batched for policy evaluation. The index must be complete
// under e (see universe.Enumerate); a non-stop action landing on a state
// with a non-larger id fails with ErrNotTopological.
func Build(e gfn.Environment, idx *universe.StateIndex, batchSize int) (*MDP, error) {
	if batchSize < 1 {
		return nil, errors.New("mdp: batch size must be positive")
	}
	m := &MDP{
		Env:       e,
		Index:     idx,
		BatchSize: batchSize,
	}
	n := int32(idx.Len())
	sink := m.SinkID()

	for first := int32(0); first < n; first += int32(batchSize) {
		count := n - first
		if count > int32(batchSize) {
			count = int32(batchSize)
		}
		b := &CachedBatch{
			First:    first,
			Count:    count,
			ActFirst: make([]int32, 1, count+1),
			EdgeBase: int32(m.NumEdges),
		}
		for id := first; id < first+count; id++ {
			if err := appendState(m, b, id, sink); err != nil {
				return nil, err
			}
			b.ActFirst = append(b.ActFirst, int32(len(b.Acts)))
		}
		m.NumEdges += len(b.Acts)
		m.Batches = append(m.Batches, b)
		if len(m.Batches)%100 == 0 {
			klog.V(2).Infof("expanded %d/%d states, %d edges", first+count, n, m.NumEdges)
		}
	}

	m.buildInEdges()
	return m, nil
}

// appendState expands the legal actions of one state into the batch.
func appendState(m *MDP, b *CachedBatch, id, sink int32) error {
	X := m.Index.State(id)
	masks := m.Env.Masks(X)

	emit := func(act gfn.Action) error {
		logit := int32(len(b.Acts))
		b.Acts = append(b.Acts, act)
		if act.Type == gfn.ActionStop {
			b.Ending = append(b.Ending, EdgeRef{Src: id, Dst: id, Logit: logit})
			return nil
		}
		Y, err := m.Env.Step(X, act)
		if err != nil {
			return err
		}
		dst := m.Index.LookupOr(Y, sink)
		if dst == sink {
			b.Ending = append(b.Ending, EdgeRef{Src: id, Dst: sink, Logit: logit})
			return nil
		}
		if dst <= id {
			return errors.Wrapf(gfn.ErrNotTopological,
				"action %v at state %d lands on %d", act, id, dst)
		}
		b.Being = append(b.Being, EdgeRef{Src: id, Dst: dst, Logit: logit})
		return nil
	}

	if !masks.Stop {
		return errors.Errorf("mdp: state %d has no stop action", id)
	}
	if err := emit(gfn.Action{Type: gfn.ActionStop}); err != nil {
		return err
	}
	for r := 0; r < masks.NodeRows; r++ {
		for c := 0; c < masks.NumColors; c++ {
			if !masks.AddNodeAllowed(r, colgraph.Color(c)) {
				continue
			}
			err := emit(gfn.Action{
				Type:   gfn.ActionAddNode,
				Target: int32(r),
				Color:  colgraph.Color(c),
			})
			if err != nil {
				return err
			}
		}
	}
	for _, pair := range masks.EdgePairs {
		if err := emit(gfn.Action{Type: gfn.ActionAddEdge, U: pair[0], V: pair[1]}); err != nil {
			return err
		}
	}
	return nil
}

// Restore reassembles an MDP from persisted batches, revalidating the
// ordering invariants and rebuilding the derived in-edge structure.
func Restore(e gfn.Environment, idx *universe.StateIndex, batches []*CachedBatch, batchSize int) (*MDP, error) {
	m := &MDP{
		Env:       e,
		Index:     idx,
		Batches:   batches,
		BatchSize: batchSize,
	}
	for _, b := range batches {
		if int(b.EdgeBase) != m.NumEdges {
			return nil, errors.Wrapf(gfn.ErrNotTopological,
				"batch at %d has edge base %d, want %d", b.First, b.EdgeBase, m.NumEdges)
		}
		m.NumEdges += b.NumLogits()
		for _, ref := range b.Being {
			if ref.Dst <= ref.Src {
				return nil, errors.Wrapf(gfn.ErrNotTopological,
					"edge %d -> %d", ref.Src, ref.Dst)
			}
		}
	}
	if err := m.checkBatchOrder(); err != nil {
		return nil, err
	}
	m.buildInEdges()
	return m, nil
}

// buildInEdges inverts the transition graph: for every state (and the
// sink) the in-edges grouped by source, sources descending so the stop
// self-loop of a state comes first.
func (m *MDP) buildInEdges() {
	in := make([][]predGroup, m.NumStates()+1)

	add := func(ref EdgeRef, base int32) {
		groups := in[ref.Dst]
		edge := base + ref.Logit
		// Sources arrive in ascending order, so descending insertion is
		// a prepend or a head-group append.
		if len(groups) > 0 && groups[0].src == ref.Src {
			groups[0].edges = append(groups[0].edges, edge)
		} else {
			groups = append([]predGroup{{src: ref.Src, edges: []int32{edge}}}, groups...)
		}
		in[ref.Dst] = groups
	}

	for _, b := range m.Batches {
		for _, ref := range b.Being {
			add(ref, b.EdgeBase)
		}
		for _, ref := range b.Ending {
			add(ref, b.EdgeBase)
		}
	}
	m.inEdges = in
}

// checkBatchOrder verifies the batches tile the id range contiguously.
// Flow and probability passes rely on this ordering.
func (m *MDP) checkBatchOrder() error {
	next := int32(0)
	for _, b := range m.Batches {
		if b.First != next {
			return errors.Wrapf(gfn.ErrNotTopological,
				"batch starts at %d, want %d", b.First, next)
		}
		next += b.Count
	}
	if next != int32(m.NumStates()) {
		return errors.Wrapf(gfn.ErrNotTopological,
			"batches cover %d of %d states", next, m.NumStates())
	}
	return nil
}
