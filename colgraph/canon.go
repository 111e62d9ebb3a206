package colgraph

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
)

// CanonicalHash returns a structural hash that is invariant under any
// color-preserving relabeling of the nodes. Two isomorphic graphs always
// hash equally; distinct graphs may collide, so callers must confirm a
// match with IsIsomorphic within a hash bucket.
//
// The hash is iterated color refinement (Weisfeiler-Lehman): each node
// label starts from its color and is repeatedly combined with the sorted
// multiset of its neighbors' labels.
func (X *Graph) CanonicalHash() uint64 {
	n := X.NumNodes()
	if n == 0 {
		return 0
	}

	labels := make([]uint64, n)
	next := make([]uint64, n)
	for i := 0; i < n; i++ {
		labels[i] = hash64(uint64(X.colors[i]), 0x9E3779B97F4A7C15)
	}

	neighbor := make([]uint64, 0, MaxNodes)
	for round := 0; round < n; round++ {
		for i := 0; i < n; i++ {
			neighbor = neighbor[:0]
			X.Neighbors(i, func(v int) {
				neighbor = append(neighbor, labels[v])
			})
			sort.Slice(neighbor, func(a, b int) bool { return neighbor[a] < neighbor[b] })
			h := labels[i]
			for _, nl := range neighbor {
				h = hash64(h, nl)
			}
			next[i] = h
		}
		labels, next = next, labels
	}

	// Node order must not matter, so fold the sorted final labels.
	sort.Slice(labels, func(a, b int) bool { return labels[a] < labels[b] })
	h := hash64(uint64(n), uint64(X.edgeCount))
	for _, l := range labels {
		h = hash64(h, l)
	}
	return h
}

// IsIsomorphic reports whether X and Y are isomorphic under a bijection
// that preserves node colors and edges. Exact: a backtracking search over
// node assignments, pruned by color and degree. Bounded universes keep
// candidate sets tiny, so this is cheap in practice.
func (X *Graph) IsIsomorphic(Y *Graph) bool {
	n := X.NumNodes()
	if n != Y.NumNodes() || X.NumEdges() != Y.NumEdges() {
		return false
	}
	if X.ColorCounts() != Y.ColorCounts() {
		return false
	}
	if n == 0 {
		return true
	}

	m := isoMatcher{a: X, b: Y}
	for i := range m.assign[:n] {
		m.assign[i] = -1
	}
	return m.match(0)
}

type isoMatcher struct {
	a, b   *Graph
	assign [MaxNodes]int8 // node of a -> node of b
	used   uint16
}

func (m *isoMatcher) match(i int) bool {
	n := m.a.NumNodes()
	if i == n {
		return true
	}
	for j := 0; j < n; j++ {
		if m.used&(1<<uint(j)) != 0 {
			continue
		}
		if m.a.colors[i] != m.b.colors[j] || m.a.Degree(i) != m.b.Degree(j) {
			continue
		}
		ok := true
		for k := 0; k < i; k++ {
			if m.a.HasEdge(i, k) != m.b.HasEdge(j, int(m.assign[k])) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		m.assign[i] = int8(j)
		m.used |= 1 << uint(j)
		if m.match(i + 1) {
			return true
		}
		m.used &^= 1 << uint(j)
		m.assign[i] = -1
	}
	return false
}

func hash64(a, b uint64) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], a)
	binary.LittleEndian.PutUint64(buf[8:16], b)
	h.Write(buf[:])
	return h.Sum64()
}
