// Package colgraph implements small node-colored undirected graphs with a
// bounded node count, identified up to color-preserving isomorphism.
//
// A Graph is a value type sized for the enumerable universes this project
// works with (MaxNodes nodes), so it lives comfortably on the stack and in
// pools. Adjacency is kept as one bitmask per node.
package colgraph

import (
	"errors"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxNodes is the largest node count a Graph can hold.
	// Adjacency rows are uint16 bitmasks, so this must stay below 16.
	MaxNodes = 15

	// MaxColors bounds the node color alphabet.
	MaxColors = 8
)

var (
	ErrNodeLimit   = errors.New("colgraph: node limit exceeded")
	ErrBadNode     = errors.New("colgraph: bad node index")
	ErrBadColor    = errors.New("colgraph: bad node color")
	ErrBadEdge     = errors.New("colgraph: bad edge")
	ErrEdgeExists  = errors.New("colgraph: edge already present")
	ErrEdgeMissing = errors.New("colgraph: edge not present")
	ErrBadExpr     = errors.New("colgraph: bad graph expression")
	ErrBadEncoding = errors.New("colgraph: bad graph encoding")
)

// Color is a node color (a small non-negative ordinal).
type Color byte

// Graph is a node-colored undirected graph with at most MaxNodes nodes.
// The zero value is the empty graph.
type Graph struct {
	nodeCount int32
	edgeCount int32
	colors    [MaxNodes]Color
	adj       [MaxNodes]uint16
}

// New returns a copy of Xsrc, or the empty graph if Xsrc is nil.
func New(Xsrc *Graph) *Graph {
	X := &Graph{}
	X.Init(Xsrc)
	return X
}

// Init resets X to a copy of Xsrc (or to the empty graph if Xsrc is nil).
func (X *Graph) Init(Xsrc *Graph) {
	if Xsrc == nil || Xsrc == X {
		if Xsrc == nil {
			*X = Graph{}
		}
		return
	}
	*X = *Xsrc
}

func (X *Graph) NumNodes() int { return int(X.nodeCount) }
func (X *Graph) NumEdges() int { return int(X.edgeCount) }

// Color returns the color of node i.
func (X *Graph) Color(i int) Color {
	return X.colors[i]
}

// Degree returns the number of edges incident to node i.
func (X *Graph) Degree(i int) int {
	return bits.OnesCount16(X.adj[i])
}

// HasEdge reports whether nodes u and v are adjacent.
func (X *Graph) HasEdge(u, v int) bool {
	return X.adj[u]&(1<<uint(v)) != 0
}

// AddNode appends a new node with the given color and returns its index.
func (X *Graph) AddNode(c Color) (int, error) {
	if X.nodeCount >= MaxNodes {
		return -1, ErrNodeLimit
	}
	if c >= MaxColors {
		return -1, ErrBadColor
	}
	i := int(X.nodeCount)
	X.colors[i] = c
	X.adj[i] = 0
	X.nodeCount++
	return i, nil
}

// AddEdge connects nodes u and v. Self-loops and parallel edges are rejected.
func (X *Graph) AddEdge(u, v int) error {
	if u < 0 || v < 0 || u >= X.NumNodes() || v >= X.NumNodes() || u == v {
		return ErrBadEdge
	}
	if X.HasEdge(u, v) {
		return ErrEdgeExists
	}
	X.adj[u] |= 1 << uint(v)
	X.adj[v] |= 1 << uint(u)
	X.edgeCount++
	return nil
}

// RemoveEdge disconnects nodes u and v.
func (X *Graph) RemoveEdge(u, v int) error {
	if u < 0 || v < 0 || u >= X.NumNodes() || v >= X.NumNodes() || !X.HasEdge(u, v) {
		return ErrEdgeMissing
	}
	X.adj[u] &^= 1 << uint(v)
	X.adj[v] &^= 1 << uint(u)
	X.edgeCount--
	return nil
}

// RemoveNode deletes node i and its incident edges. Remaining nodes shift
// down to keep indices dense, which is fine since identity is up to
// isomorphism anyway.
func (X *Graph) RemoveNode(i int) error {
	n := X.NumNodes()
	if i < 0 || i >= n {
		return ErrBadNode
	}
	X.edgeCount -= int32(X.Degree(i))

	loMask := uint16(1<<uint(i)) - 1
	for j := 0; j < n; j++ {
		row := X.adj[j]
		X.adj[j] = (row & loMask) | ((row >> (uint(i) + 1)) << uint(i))
	}
	copy(X.colors[i:], X.colors[i+1:n])
	copy(X.adj[i:], X.adj[i+1:n])
	X.nodeCount--
	return nil
}

// Edges returns all edges as (u, v) pairs with u < v, in ascending order.
func (X *Graph) Edges() [][2]int32 {
	edges := make([][2]int32, 0, X.edgeCount)
	n := X.NumNodes()
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if X.HasEdge(u, v) {
				edges = append(edges, [2]int32{int32(u), int32(v)})
			}
		}
	}
	return edges
}

// Neighbors calls visit for every node adjacent to u.
func (X *Graph) Neighbors(u int, visit func(v int)) {
	for m := X.adj[u]; m != 0; m &= m - 1 {
		visit(trailingZeros16(m))
	}
}

// IsConnected reports whether the graph is connected. The empty graph and
// single nodes count as connected.
func (X *Graph) IsConnected() bool {
	n := X.NumNodes()
	if n <= 1 {
		return true
	}
	return X.reachableFrom(0, 0xFFFF) == uint16(1<<uint(n))-1
}

// ConnectedWithoutEdge reports whether the graph stays connected when the
// (u, v) edge is ignored. Used to decide if an edge removal is legal.
func (X *Graph) ConnectedWithoutEdge(u, v int) bool {
	n := X.NumNodes()
	if !X.HasEdge(u, v) || n <= 1 {
		return false
	}
	// Drop the edge from both rows for the traversal only.
	blockU, blockV := uint16(1<<uint(u)), uint16(1<<uint(v))
	seen := uint16(1 << uint(0))
	stack := [MaxNodes]int{0}
	top := 1
	for top > 0 {
		top--
		w := stack[top]
		row := X.adj[w]
		if w == u {
			row &^= blockV
		} else if w == v {
			row &^= blockU
		}
		for m := row &^ seen; m != 0; m &= m - 1 {
			nb := trailingZeros16(m)
			seen |= 1 << uint(nb)
			stack[top] = nb
			top++
		}
	}
	return seen == uint16(1<<uint(n))-1
}

func (X *Graph) reachableFrom(start int, allow uint16) uint16 {
	seen := uint16(1 << uint(start))
	stack := [MaxNodes]int{start}
	top := 1
	for top > 0 {
		top--
		w := stack[top]
		for m := X.adj[w] & allow &^ seen; m != 0; m &= m - 1 {
			nb := trailingZeros16(m)
			seen |= 1 << uint(nb)
			stack[top] = nb
			top++
		}
	}
	return seen
}

// ColorCounts returns a histogram of node colors.
func (X *Graph) ColorCounts() [MaxColors]int {
	var counts [MaxColors]int
	for i := 0; i < X.NumNodes(); i++ {
		counts[X.colors[i]]++
	}
	return counts
}

// String renders the graph in the expression grammar accepted by FromString.
func (X *Graph) String() string {
	n := X.NumNodes()
	if n == 0 {
		return ""
	}
	var b strings.Builder
	mentioned := make([]bool, n)
	wrote := false
	writeNode := func(v int) {
		b.WriteString(strconv.Itoa(v + 1))
		if !mentioned[v] {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(int(X.colors[v])))
			mentioned[v] = true
		}
	}
	for _, e := range X.Edges() {
		if wrote {
			b.WriteString(", ")
		}
		writeNode(int(e[0]))
		b.WriteByte('-')
		writeNode(int(e[1]))
		wrote = true
	}
	for v := 0; v < n; v++ {
		if !mentioned[v] {
			if wrote {
				b.WriteString(", ")
			}
			writeNode(v)
			wrote = true
		}
	}
	return b.String()
}

// sortEdges orders an edge list lexicographically; used by tests and the
// binary encoding so equal graphs encode identically.
func sortEdges(edges [][2]int32) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
}

func trailingZeros16(m uint16) int {
	return bits.TrailingZeros16(m)
}
