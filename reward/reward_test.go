package reward_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/env"
	"github.com/lazaratan/gflownet-generalization/reward"
	"github.com/lazaratan/gflownet-generalization/universe"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"const", "count", "even_neighbors", "cliques"} {
		fn, err := reward.ByName(name)
		require.NoError(t, err)
		require.NotNil(t, fn)
	}
	_, err := reward.ByName("nope")
	assert.Error(t, err)
}

func TestConst(t *testing.T) {
	assert.Equal(t, 0.0, reward.Const(colgraph.New(nil)))
	assert.Equal(t, 0.0, reward.Const(colgraph.MustFromString("1-2-3-1")))
}

func TestCount(t *testing.T) {
	// Three color-0 nodes hit the target exactly.
	assert.InDelta(t, 0.0, reward.Count(colgraph.MustFromString("1:0-2:0-3:0")), 1e-9)

	// Empty graph: |0 - 3| / 4 * 10.
	assert.InDelta(t, -7.5, reward.Count(colgraph.New(nil)), 1e-9)

	// Two color-0 and two color-1 nodes: |2 + 1 - 3| = 0.
	assert.InDelta(t, 0.0, reward.Count(colgraph.MustFromString("1:0-2:0, 2-3:1, 3-4:1")), 1e-9)
}

func TestEvenNeighbors(t *testing.T) {
	// At most 3 nodes: flat -5 * 10/7.
	assert.InDelta(t, -50.0/7, reward.EvenNeighbors(colgraph.MustFromString("1-2-3")), 1e-9)

	// 4-cycle with alternating colors: every node has 2 differently
	// colored neighbors, so total_correct = 4 and score = (4-4)*10/7.
	alt := colgraph.MustFromString("1:0-2:1-3:0-4:1-1")
	assert.InDelta(t, 0.0, reward.EvenNeighbors(alt), 1e-9)

	// Monochromatic 4-cycle: every node has 0 different neighbors,
	// contributing 1-1 each, so score = (0-4)*10/7.
	mono := colgraph.MustFromString("1-2-3-4-1")
	assert.InDelta(t, -40.0/7, reward.EvenNeighbors(mono), 1e-9)
}

func TestCliques(t *testing.T) {
	// Empty graph: no cliques, 0 nodes, score -1.
	assert.InDelta(t, -1.0, reward.Cliques(colgraph.New(nil)), 1e-9)

	// Single node: one maximal clique of size 1. 0 - 1 + 1 - 1 = -1.
	assert.InDelta(t, -1.0, reward.Cliques(colgraph.MustFromString("1")), 1e-9)

	// Monochromatic K4: one matching 4-clique, 4 memberships.
	// 1 - 4 + 4 - 1 = 0.
	k4 := colgraph.MustFromString("1-2-3-4-1, 1-3, 2-4")
	assert.InDelta(t, 0.0, reward.Cliques(k4), 1e-9)

	// K4 with a 2-2 color split misses the 3-of-a-kind match: 0.5 - 4 + 4 - 1.
	mixed := colgraph.MustFromString("1:0-2:0-3:1-4:1-1, 1-3, 2-4")
	assert.InDelta(t, -0.5, reward.Cliques(mixed), 1e-9)

	// Triangle: one maximal 3-clique scores nothing. 0 - 3 + 3 - 1 = -1.
	assert.InDelta(t, -1.0, reward.Cliques(colgraph.MustFromString("1-2-3-1")), 1e-9)
}

func TestLogRewardsVector(t *testing.T) {
	e, err := env.New(3, 1)
	require.NoError(t, err)
	idx, err := universe.Enumerate(e)
	require.NoError(t, err)

	lr := reward.LogRewards(idx, reward.Count)
	require.Len(t, lr, idx.Len())
	for id, v := range lr {
		assert.Equal(t, reward.Count(idx.State(int32(id))), v)
	}
}
