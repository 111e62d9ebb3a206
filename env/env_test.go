package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/env"
	"github.com/lazaratan/gflownet-generalization/gfn"
)

func TestMasksEmptyGraph(t *testing.T) {
	e, err := env.New(3, 2)
	require.NoError(t, err)

	m := e.Masks(colgraph.New(nil))
	assert.True(t, m.Stop)
	assert.Equal(t, 1, m.NodeRows)
	assert.Equal(t, []bool{true, true}, m.AddNode)
	assert.Empty(t, m.EdgePairs)
	assert.Equal(t, 3, m.NumLegal())
}

func TestMasksAtNodeBound(t *testing.T) {
	e, err := env.New(3, 2)
	require.NoError(t, err)

	X := colgraph.MustFromString("1-2-3")
	m := e.Masks(X)
	assert.True(t, m.Stop)
	assert.Equal(t, 0, m.NodeRows)
	assert.Empty(t, m.AddNode)
	// Only the closing edge 1-3 is available.
	assert.Equal(t, [][2]int32{{0, 2}}, m.EdgePairs)
}

func TestReverseMasks(t *testing.T) {
	e, err := env.New(5, 2)
	require.NoError(t, err)

	// Triangle with a pendant: 4 is the only removable node, and only the
	// triangle edges survive removal.
	X := colgraph.MustFromString("1-2-3-1, 3-4")
	rm := e.ReverseMasks(X)
	assert.Equal(t, []bool{false, false, false, true}, rm.RemoveNode)

	edges := X.Edges()
	for i, e := range edges {
		pendant := e == [2]int32{2, 3}
		assert.Equal(t, !pendant, rm.RemoveEdge[i], "edge %v", e)
	}

	single := colgraph.MustFromString("1:1")
	rm = e.ReverseMasks(single)
	assert.Equal(t, []bool{true}, rm.RemoveNode)
}

func TestStepAddNode(t *testing.T) {
	e, err := env.New(3, 2)
	require.NoError(t, err)

	// First node placed unattached.
	X, err := e.Step(colgraph.New(nil), gfn.Action{Type: gfn.ActionAddNode, Color: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, X.NumNodes())
	assert.Equal(t, 0, X.NumEdges())
	assert.Equal(t, colgraph.Color(1), X.Color(0))

	// Subsequent nodes attach to Target.
	Y, err := e.Step(X, gfn.Action{Type: gfn.ActionAddNode, Target: 0, Color: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, Y.NumNodes())
	assert.True(t, Y.HasEdge(0, 1))

	// Source state untouched.
	assert.Equal(t, 1, X.NumNodes())

	Z, err := e.Step(Y, gfn.Action{Type: gfn.ActionAddNode, Target: 1, Color: 1})
	require.NoError(t, err)

	_, err = e.Step(Z, gfn.Action{Type: gfn.ActionAddNode, Target: 0, Color: 0})
	assert.ErrorIs(t, err, gfn.ErrIllegalAction)
}

func TestStepEdges(t *testing.T) {
	e, err := env.New(4, 1)
	require.NoError(t, err)

	path := colgraph.MustFromString("1-2-3")
	tri, err := e.Step(path, gfn.Action{Type: gfn.ActionAddEdge, U: 0, V: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, tri.NumEdges())

	_, err = e.Step(tri, gfn.Action{Type: gfn.ActionAddEdge, U: 0, V: 2})
	assert.ErrorIs(t, err, gfn.ErrIllegalAction)

	back, err := e.Step(tri, gfn.Action{Type: gfn.ActionRemoveEdge, U: 1, V: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, back.NumEdges())

	// Removing a bridge would disconnect the path.
	_, err = e.Step(path, gfn.Action{Type: gfn.ActionRemoveEdge, U: 0, V: 1})
	assert.ErrorIs(t, err, gfn.ErrIllegalAction)
}

func TestStepRemoveNode(t *testing.T) {
	e, err := env.New(4, 1)
	require.NoError(t, err)

	X := colgraph.MustFromString("1-2-3")
	_, err = e.Step(X, gfn.Action{Type: gfn.ActionRemoveNode, Target: 1})
	assert.ErrorIs(t, err, gfn.ErrIllegalAction)

	Y, err := e.Step(X, gfn.Action{Type: gfn.ActionRemoveNode, Target: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, Y.NumNodes())
	assert.True(t, Y.IsConnected())

	lone := colgraph.MustFromString("1")
	empty, err := e.Step(lone, gfn.Action{Type: gfn.ActionRemoveNode, Target: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumNodes())
}

// Every legal forward action has a backward action returning to the source
// state, and Step agrees with the masks on legality.
func TestForwardBackwardConsistency(t *testing.T) {
	e, err := env.New(3, 2)
	require.NoError(t, err)

	for _, expr := range []string{"", "1:1", "1-2:1", "1-2-3"} {
		X := colgraph.MustFromString(expr)
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
				require.NoError(t, err)
				rm := e.ReverseMasks(Y)
				assert.True(t, rm.RemoveNode[Y.NumNodes()-1], "state %q", expr)

				Z, err := e.Step(Y, gfn.Action{
					Type:   gfn.ActionRemoveNode,
					Target: int32(Y.NumNodes() - 1),
				})
				require.NoError(t, err)
				assert.True(t, X.IsIsomorphic(Z), "state %q", expr)
			}
		}

		for _, pair := range m.EdgePairs {
			Y, err := e.Step(X, gfn.Action{Type: gfn.ActionAddEdge, U: pair[0], V: pair[1]})
			require.NoError(t, err)
			Z, err := e.Step(Y, gfn.Action{Type: gfn.ActionRemoveEdge, U: pair[0], V: pair[1]})
			require.NoError(t, err)
			assert.True(t, X.IsIsomorphic(Z), "state %q edge %v", expr, pair)
		}
	}
}
