package mdp

import (
	"github.com/pkg/errors"

	"github.com/lazaratan/gflownet-generalization/gfn"
)

// Policy scores the actions of a batch. Logits returns one unnormalized
// score per logit slot of the batch plus one log-flow estimate per state.
// The probability pass normalizes the scores per state, so any additive
// shift per state is immaterial.
type Policy interface {
	Logits(b *CachedBatch) (logits, logFlow []float64, err error)
}

// FlowPolicy reads a flow assignment as a policy: the score of an action
// is its edge log flow, so after normalization the policy samples each
// action proportionally to the flow it carries.
type FlowPolicy struct {
	mdp  *MDP
	flow *FlowAssignment
}

func NewFlowPolicy(m *MDP, f *FlowAssignment) *FlowPolicy {
	return &FlowPolicy{mdp: m, flow: f}
}

func (p *FlowPolicy) Logits(b *CachedBatch) ([]float64, []float64, error) {
	logits := make([]float64, b.NumLogits())
	for k := range logits {
		logits[k] = p.flow.EdgeF[b.EdgeBase+int32(k)]
	}
	logFlow := make([]float64, b.Count)
	for j := int32(0); j < b.Count; j++ {
		logFlow[j] = p.flow.NodeF[b.First+j]
	}
	return logits, logFlow, nil
}

// ProbResult is the outcome of a forward probability pass.
//
// LogProbOfEnding has one entry per state plus a final slot for the
// illegal sink; entry i is the exact log probability that a rollout of
// the policy terminates at state i. StateLogFlow and LogRewardsEstimate
// echo the policy's log-flow head: the reward estimate of a state is its
// log flow plus its stop log probability.
type ProbResult struct {
	LogProbOfEnding    []float64
	StateLogFlow       []float64
	LogRewardsEstimate []float64
}

// ComputeProb propagates visit probabilities forward through the
// transition graph under the given policy and returns the exact terminal
// distribution. Batches are replayed in id order; the topological
// ordering of ids is what makes a single forward sweep exact.
func (m *MDP) ComputeProb(policy Policy) (*ProbResult, error) {
	if err := m.checkBatchOrder(); err != nil {
		return nil, err
	}
	n := m.NumStates()
	being := make([]float64, n+1)
	res := &ProbResult{
		LogProbOfEnding:    make([]float64, n+1),
		StateLogFlow:       make([]float64, n),
		LogRewardsEstimate: make([]float64, n),
	}
	for i := range being {
		being[i] = gfn.LogZero
		res.LogProbOfEnding[i] = gfn.LogZero
	}
	being[0] = 0 // every rollout starts at the empty graph

	for _, b := range m.Batches {
		logits, logFlow, err := policy.Logits(b)
		if err != nil {
			return nil, err
		}
		if len(logits) != b.NumLogits() {
			return nil, errors.Wrapf(gfn.ErrBadLogitCount,
				"batch at %d: got %d, want %d", b.First, len(logits), b.NumLogits())
		}
		if len(logFlow) != int(b.Count) {
			return nil, errors.Wrapf(gfn.ErrBadLogitCount,
				"batch at %d: got %d flows, want %d", b.First, len(logFlow), b.Count)
		}

		logProbs := normalizePerState(b, logits)
		for j := int32(0); j < b.Count; j++ {
			id := b.First + j
			res.StateLogFlow[id] = logFlow[j]
			// Stop occupies the first logit slot of every state.
			res.LogRewardsEstimate[id] = logFlow[j] + logProbs[b.ActFirst[j]]
		}

		// Being edges are in ascending source order, and every edge leads
		// to a strictly larger id, so by the time a source is read all of
		// its incoming probability has been accumulated.
		for _, ref := range b.Being {
			if ref.Dst <= ref.Src {
				return nil, errors.Wrapf(gfn.ErrNotTopological,
					"edge %d -> %d", ref.Src, ref.Dst)
			}
			p := being[ref.Src] + logProbs[ref.Logit]
			being[ref.Dst] = gfn.LogAddExp(being[ref.Dst], p)
		}
		for _, ref := range b.Ending {
			p := being[ref.Src] + logProbs[ref.Logit]
			res.LogProbOfEnding[ref.Dst] = gfn.LogAddExp(res.LogProbOfEnding[ref.Dst], p)
		}
	}
	return res, nil
}

// normalizePerState log-softmaxes the logit vector within each state's
// slot range.
func normalizePerState(b *CachedBatch, logits []float64) []float64 {
	out := make([]float64, len(logits))
	for j := int32(0); j < b.Count; j++ {
		lo, hi := b.ActFirst[j], b.ActFirst[j+1]
		z := gfn.LogSumExp(logits[lo:hi])
		for k := lo; k < hi; k++ {
			out[k] = logits[k] - z
		}
	}
	return out
}
