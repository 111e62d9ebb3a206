// Package reward defines the terminal log-reward functions over states.
// All functions return log rewards directly.
package reward

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/universe"
)

// Func assigns a log reward to a terminal state.
type Func func(X *colgraph.Graph) float64

// ByName resolves a reward function by its configuration name.
func ByName(name string) (Func, error) {
	switch name {
	case "const":
		return Const, nil
	case "count":
		return Count, nil
	case "even_neighbors":
		return EvenNeighbors, nil
	case "cliques":
		return Cliques, nil
	}
	return nil, errors.Errorf("reward: unknown reward function %q", name)
}

// LogRewards evaluates fn over every state of the index, in id order.
func LogRewards(idx *universe.StateIndex, fn Func) []float64 {
	out := make([]float64, idx.Len())
	for id := range out {
		out[id] = fn(idx.State(int32(id)))
	}
	return out
}

// Const gives every state reward 1 (log reward 0), making the target
// distribution uniform over terminal states.
func Const(X *colgraph.Graph) float64 {
	return 0
}

// Count rewards graphs whose weighted color count sits near 3, counting
// color-0 nodes fully and color-1 nodes half.
func Count(X *colgraph.Graph) float64 {
	var counts [2]float64
	for i := 0; i < X.NumNodes(); i++ {
		if c := X.Color(i); c < 2 {
			counts[c]++
		}
	}
	return -math.Abs(counts[0]+counts[1]/2-3) / 4 * 10
}

// EvenNeighbors rewards nodes whose differently-colored neighbor count is
// even and nonzero. Graphs of at most 3 nodes get a flat penalty.
func EvenNeighbors(X *colgraph.Graph) float64 {
	n := X.NumNodes()
	totalCorrect := 0
	for i := 0; i < n; i++ {
		numDiff := 0
		c := X.Color(i)
		X.Neighbors(i, func(j int) {
			if X.Color(j) != c {
				numDiff++
			}
		})
		if numDiff%2 == 0 {
			totalCorrect++
		}
		if numDiff == 0 {
			totalCorrect--
		}
	}
	score := -5
	if n > 3 {
		score = totalCorrect - n
	}
	return float64(score) * 10 / 7
}

// Cliques rewards near-monochromatic 4-cliques. Each maximal clique of
// size 4 scores 1 when at least 3 of its nodes share a color and 0.5
// otherwise; every clique membership costs 1; node count minus one is
// added back; the result floors at -10.
func Cliques(X *colgraph.Graph) float64 {
	return cliquesReward(X, 4)
}

func cliquesReward(X *colgraph.Graph, n int) float64 {
	score := 0.0
	memberships := 0
	for _, clique := range maximalCliques(X) {
		memberships += len(clique)
		if len(clique) != n {
			continue
		}
		if colorMatch(X, clique, n) {
			score += 1.0
		} else {
			score += 0.5
		}
	}
	r := score - float64(memberships) + float64(X.NumNodes()) - 1
	return math.Max(r, -10)
}

// colorMatch reports whether some color covers at least n-1 of the clique.
func colorMatch(X *colgraph.Graph, clique []int, n int) bool {
	var counts [colgraph.MaxColors]int
	for _, i := range clique {
		counts[X.Color(i)]++
	}
	for _, c := range counts {
		if c >= n-1 {
			return true
		}
	}
	return false
}

// maximalCliques runs Bron-Kerbosch with pivoting over the adjacency
// bitmasks. Fine for the node counts involved here.
func maximalCliques(X *colgraph.Graph) [][]int {
	n := X.NumNodes()
	adj := make([]uint16, n)
	for i := 0; i < n; i++ {
		X.Neighbors(i, func(j int) {
			adj[i] |= 1 << j
		})
	}

	var out [][]int
	var grow func(r, p, x uint16)
	grow = func(r, p, x uint16) {
		if p == 0 && x == 0 {
			var clique []int
			for i := 0; i < n; i++ {
				if r&(1<<i) != 0 {
					clique = append(clique, i)
				}
			}
			out = append(out, clique)
			return
		}
		// Pivot on the candidate covering the most of p.
		pivot, best := -1, -1
		for i := 0; i < n; i++ {
			if (p|x)&(1<<i) != 0 {
				if cover := bits.OnesCount16(p & adj[i]); cover > best {
					pivot, best = i, cover
				}
			}
		}
		for i := 0; i < n; i++ {
			bit := uint16(1) << i
			if p&bit == 0 || adj[pivot]&bit != 0 {
				continue
			}
			grow(r|bit, p&adj[i], x&adj[i])
			p &^= bit
			x |= bit
		}
	}

	if n > 0 {
		grow(0, uint16(1<<n)-1, 0)
	}
	return out
}
