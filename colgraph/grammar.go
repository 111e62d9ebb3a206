package colgraph

import (
	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
)

// Graph expression grammar, e.g.
//
//	"1:0-2:1-3:0, 1-3"   triangle-free path closed into a triangle
//	"1:1"                a single node colored 1
//	""                   the empty graph
//
// Node ids are 1-based. A node's color is given at its first mention with
// ":<color>" and defaults to 0; later mentions may repeat the color but
// must not contradict it. "-" chains consecutive nodes into edge runs and
// "," separates runs.

type graphExpr struct {
	Runs []*edgeRun `parser:"(@@ (\",\" @@)*)?"`
}

type edgeRun struct {
	Start *nodeRef   `parser:"@@"`
	Edges []*edgeDst `parser:"@@*"`
}

type edgeDst struct {
	End *nodeRef `parser:"\"-\" @@"`
}

type nodeRef struct {
	ID    int64  `parser:"@Int"`
	Color *int64 `parser:"(\":\" @Int)?"`
}

var parseGraphExpr = participle.MustBuild[graphExpr]()

type exprBuilder struct {
	colors   [MaxNodes]Color
	colorSet [MaxNodes]bool
	maxID    int64
	edges    [][2]int32
}

func (gb *exprBuilder) tallyNode(ref *nodeRef) error {
	if ref.ID < 1 || ref.ID > MaxNodes {
		return errors.Wrapf(ErrBadExpr, "node id %d out of range", ref.ID)
	}
	if ref.ID > gb.maxID {
		gb.maxID = ref.ID
	}
	i := ref.ID - 1
	if ref.Color != nil {
		c := *ref.Color
		if c < 0 || c >= MaxColors {
			return errors.Wrapf(ErrBadExpr, "node %d color %d out of range", ref.ID, c)
		}
		if gb.colorSet[i] && gb.colors[i] != Color(c) {
			return errors.Wrapf(ErrBadExpr, "node %d recolored", ref.ID)
		}
		gb.colors[i] = Color(c)
		gb.colorSet[i] = true
	}
	return nil
}

func (gb *exprBuilder) applyRun(run *edgeRun) error {
	onNode := run.Start
	if err := gb.tallyNode(onNode); err != nil {
		return err
	}
	for _, edge := range run.Edges {
		if err := gb.tallyNode(edge.End); err != nil {
			return err
		}
		gb.edges = append(gb.edges, [2]int32{int32(onNode.ID - 1), int32(edge.End.ID - 1)})
		onNode = edge.End
	}
	return nil
}

// FromString parses a graph expression. Every node id in 1..max(ids) must
// be mentioned, so parsed graphs have dense node indices.
func FromString(expr string) (*Graph, error) {
	X := New(nil)
	if expr == "" {
		return X, nil
	}

	parsed, err := parseGraphExpr.ParseString("", expr)
	if err != nil {
		return nil, errors.Wrap(ErrBadExpr, err.Error())
	}

	var gb exprBuilder
	for _, run := range parsed.Runs {
		if err := gb.applyRun(run); err != nil {
			return nil, err
		}
	}

	for i := int64(0); i < gb.maxID; i++ {
		if _, err := X.AddNode(gb.colors[i]); err != nil {
			return nil, err
		}
	}
	for _, e := range gb.edges {
		if err := X.AddEdge(int(e[0]), int(e[1])); err != nil {
			return nil, errors.Wrapf(err, "edge %d-%d", e[0]+1, e[1]+1)
		}
	}
	return X, nil
}

// MustFromString is FromString for literals in tests and examples.
func MustFromString(expr string) *Graph {
	X, err := FromString(expr)
	if err != nil {
		panic(err)
	}
	return X
}
