package universe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/env"
	"github.com/lazaratan/gflownet-generalization/gfn"
	"github.com/lazaratan/gflownet-generalization/universe"
)

func mustEnv(t *testing.T, maxNodes, numColors int) *env.GraphEnv {
	t.Helper()
	e, err := env.New(maxNodes, numColors)
	require.NoError(t, err)
	return e
}

func TestStateIndexRegisterDedupes(t *testing.T) {
	idx := universe.NewStateIndex()

	a := idx.Register(colgraph.MustFromString("1:0-2:1-3:0"))
	b := idx.Register(colgraph.MustFromString("1:0-2:1-3:0, 1-3"))
	assert.NotEqual(t, a, b)

	// A relabeling of the first graph resolves to the same class.
	c := idx.Register(colgraph.MustFromString("2:1-1:0, 2-3:0"))
	assert.Equal(t, a, c)
	assert.Equal(t, 2, idx.Len())

	id, err := idx.Lookup(colgraph.MustFromString("3:0-1:1-2:0"))
	require.NoError(t, err)
	assert.Equal(t, a, id)

	_, err = idx.Lookup(colgraph.MustFromString("1-2-3-4-1"))
	assert.ErrorIs(t, err, gfn.ErrStateNotFound)
	assert.Equal(t, int32(-7), idx.LookupOr(colgraph.MustFromString("1-2-3-4-1"), -7))
}

func TestEnumerateTinyUniverses(t *testing.T) {
	// One node, two colors: empty graph plus one state per color.
	idx, err := universe.Enumerate(mustEnv(t, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	// Two nodes, two colors: empty, two singletons, and the three
	// connected two-node color multisets. Disconnected pairs are
	// unreachable because new nodes attach by an edge.
	idx, err = universe.Enumerate(mustEnv(t, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())

	// Three nodes, one color: empty, K1, K2, the path, the triangle.
	idx, err = universe.Enumerate(mustEnv(t, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 5, idx.Len())
}

func TestEnumerateIdsAreRankOrdered(t *testing.T) {
	idx, err := universe.Enumerate(mustEnv(t, 4, 2))
	require.NoError(t, err)

	assert.Equal(t, 0, idx.State(0).NumNodes(), "id 0 is the empty graph")
	for id := int32(1); id < int32(idx.Len()); id++ {
		assert.GreaterOrEqual(t, idx.Rank(id), idx.Rank(id-1))
	}
}

func TestEnumerateDeterministic(t *testing.T) {
	a, err := universe.Enumerate(mustEnv(t, 3, 2))
	require.NoError(t, err)
	b, err := universe.Enumerate(mustEnv(t, 3, 2))
	require.NoError(t, err)

	require.Equal(t, a.Len(), b.Len())
	for id := int32(0); id < int32(a.Len()); id++ {
		assert.Equal(t,
			a.State(id).AppendEncoding(nil),
			b.State(id).AppendEncoding(nil), "id %d", id)
	}
}

func TestReindexPreservesIds(t *testing.T) {
	idx, err := universe.Enumerate(mustEnv(t, 3, 1))
	require.NoError(t, err)

	states := make([]*colgraph.Graph, idx.Len())
	for id := range states {
		states[id] = idx.State(int32(id))
	}
	re := universe.Reindex(states)
	require.Equal(t, idx.Len(), re.Len())
	for id := int32(0); id < int32(idx.Len()); id++ {
		got, err := re.Lookup(idx.State(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}
