package colgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazaratan/gflownet-generalization/colgraph"
)

func TestEmptyGraph(t *testing.T) {
	X := colgraph.New(nil)
	assert.Equal(t, 0, X.NumNodes())
	assert.Equal(t, 0, X.NumEdges())
	assert.True(t, X.IsConnected())
	assert.Equal(t, "", X.String())
}

func TestAddRemove(t *testing.T) {
	X := colgraph.New(nil)
	a, err := X.AddNode(0)
	require.NoError(t, err)
	b, err := X.AddNode(1)
	require.NoError(t, err)
	c, err := X.AddNode(0)
	require.NoError(t, err)

	require.NoError(t, X.AddEdge(a, b))
	require.NoError(t, X.AddEdge(b, c))
	require.NoError(t, X.AddEdge(a, c))
	assert.Equal(t, 3, X.NumEdges())
	assert.ErrorIs(t, X.AddEdge(a, b), colgraph.ErrEdgeExists)
	assert.ErrorIs(t, X.AddEdge(a, a), colgraph.ErrBadEdge)

	require.NoError(t, X.RemoveEdge(a, c))
	assert.Equal(t, 2, X.NumEdges())
	assert.False(t, X.HasEdge(a, c))

	// Removing the middle node drops both remaining edges and shifts c down.
	require.NoError(t, X.RemoveNode(b))
	assert.Equal(t, 2, X.NumNodes())
	assert.Equal(t, 0, X.NumEdges())
	assert.Equal(t, colgraph.Color(0), X.Color(0))
	assert.Equal(t, colgraph.Color(0), X.Color(1))
}

func TestConnectivity(t *testing.T) {
	X := colgraph.MustFromString("1-2, 3")
	assert.False(t, X.IsConnected())

	tri := colgraph.MustFromString("1-2-3-1")
	assert.True(t, tri.IsConnected())
	assert.True(t, tri.ConnectedWithoutEdge(0, 1))

	path := colgraph.MustFromString("1-2-3")
	assert.False(t, path.ConnectedWithoutEdge(0, 1))
}

func TestFromString(t *testing.T) {
	X, err := colgraph.FromString("1:0-2:1-3:0, 1-3")
	require.NoError(t, err)
	assert.Equal(t, 3, X.NumNodes())
	assert.Equal(t, 3, X.NumEdges())
	assert.Equal(t, colgraph.Color(1), X.Color(1))

	lone, err := colgraph.FromString("1:1")
	require.NoError(t, err)
	assert.Equal(t, 1, lone.NumNodes())
	assert.Equal(t, colgraph.Color(1), lone.Color(0))

	_, err = colgraph.FromString("1:0-2, 1:1")
	assert.ErrorIs(t, err, colgraph.ErrBadExpr)

	_, err = colgraph.FromString("1:9")
	assert.ErrorIs(t, err, colgraph.ErrBadExpr)
}

func TestStringRoundTrip(t *testing.T) {
	for _, expr := range []string{
		"",
		"1:1",
		"1:0-2:1",
		"1:0-2:1-3:0-4:1, 1-3, 2-4",
	} {
		X := colgraph.MustFromString(expr)
		Y, err := colgraph.FromString(X.String())
		require.NoError(t, err, "expr %q rendered %q", expr, X.String())
		assert.True(t, X.IsIsomorphic(Y))
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	exprs := []string{
		"",
		"1:1",
		"1:0-2:1-3:0, 1-3",
		"1-2-3-4-1, 1-3",
	}
	for _, expr := range exprs {
		X := colgraph.MustFromString(expr)
		enc := X.AppendEncoding(nil)

		var Y colgraph.Graph
		require.NoError(t, Y.InitFromEncoding(enc))
		assert.Equal(t, X.NumNodes(), Y.NumNodes())
		assert.Equal(t, X.NumEdges(), Y.NumEdges())
		assert.Equal(t, enc, Y.AppendEncoding(nil))
	}

	var Z colgraph.Graph
	assert.ErrorIs(t, Z.InitFromEncoding(nil), colgraph.ErrBadEncoding)
	assert.ErrorIs(t, Z.InitFromEncoding([]byte{3, 0, 0}), colgraph.ErrBadEncoding)
}
