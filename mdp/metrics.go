package mdp

import (
	"math"

	"github.com/pkg/errors"

	"github.com/lazaratan/gflownet-generalization/gfn"
)

// Metrics compares a policy's exact terminal distribution against the
// target distribution induced by the log rewards.
type Metrics struct {
	MAELogProbs   float64 // mean |log p(x) - log q(x)| over all states
	JSDivergence  float64
	Jeffreys      float64 // symmetrized KL, halved
	MAELogRewards float64 // mean |estimated - true| terminal log reward

	// Populated only when a test subset is given.
	TestMAELogProbs   float64
	TestMAELogRewards float64
}

// ComputeMetrics evaluates res against logRewards. The illegal-sink slot
// of the ending probabilities is dropped and log probabilities are
// clipped to [ClipFloor, 0] before comparison. testIDs, when non-nil,
// selects the held-out states reported in the Test* fields.
func ComputeMetrics(res *ProbResult, logRewards []float64, testIDs []int32) (*Metrics, error) {
	n := len(logRewards)
	if len(res.LogProbOfEnding) != n+1 {
		return nil, errors.Errorf("mdp: %d ending probs for %d states",
			len(res.LogProbOfEnding), n)
	}

	lp := make([]float64, n)
	for i := range lp {
		lp[i] = clipLogProb(res.LogProbOfEnding[i])
	}
	lq := trueLogProbs(logRewards)

	mt := &Metrics{}
	eps := 1e-38
	for i := 0; i < n; i++ {
		p, q := math.Exp(lp[i]), math.Exp(lq[i])
		logm := math.Log(p/2 + q/2 + eps)
		mt.MAELogProbs += math.Abs(lp[i] - lq[i])
		mt.JSDivergence += (p*(lp[i]-logm) + q*(lq[i]-logm)) / 2
		mt.Jeffreys += (p*(lp[i]-lq[i]) + q*(lq[i]-lp[i])) / 2
		mt.MAELogRewards += math.Abs(res.LogRewardsEstimate[i] - logRewards[i])
	}
	mt.MAELogProbs /= float64(n)
	mt.MAELogRewards /= float64(n)

	if testIDs != nil {
		for _, id := range testIDs {
			mt.TestMAELogProbs += math.Abs(lp[id] - lq[id])
			mt.TestMAELogRewards += math.Abs(res.LogRewardsEstimate[id] - logRewards[id])
		}
		if len(testIDs) > 0 {
			mt.TestMAELogProbs /= float64(len(testIDs))
			mt.TestMAELogRewards /= float64(len(testIDs))
		}
	}
	return mt, nil
}

// trueLogProbs normalizes log rewards into the target log distribution.
func trueLogProbs(logRewards []float64) []float64 {
	logZ := gfn.LogSumExp(logRewards)
	out := make([]float64, len(logRewards))
	for i, r := range logRewards {
		out[i] = r - logZ
	}
	return out
}

func clipLogProb(x float64) float64 {
	if x > 0 {
		return 0
	}
	return gfn.Clip(x)
}
