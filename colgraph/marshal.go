package colgraph

// Binary encoding of a Graph:
//
//	[0]            node count
//	[1..n]         node colors
//	[n+1]          edge count
//	[n+2...]       edge pairs (u, v) with u < v, ascending
//
// Edge ordering is fixed so that equal graphs (same labeling) always
// produce identical bytes, which the persisted cache round-trip relies on.

// AppendEncoding appends the binary encoding of X to out.
func (X *Graph) AppendEncoding(out []byte) []byte {
	n := X.NumNodes()
	out = append(out, byte(n))
	for i := 0; i < n; i++ {
		out = append(out, byte(X.colors[i]))
	}
	edges := X.Edges()
	sortEdges(edges)
	out = append(out, byte(len(edges)))
	for _, e := range edges {
		out = append(out, byte(e[0]), byte(e[1]))
	}
	return out
}

// InitFromEncoding resets X from an encoding produced by AppendEncoding.
func (X *Graph) InitFromEncoding(enc []byte) error {
	X.Init(nil)
	if len(enc) == 0 {
		return ErrBadEncoding
	}
	n := int(enc[0])
	if n > MaxNodes || len(enc) < 2+n {
		return ErrBadEncoding
	}
	for i := 0; i < n; i++ {
		if _, err := X.AddNode(Color(enc[1+i])); err != nil {
			return err
		}
	}
	ne := int(enc[1+n])
	if len(enc) != 2+n+2*ne {
		return ErrBadEncoding
	}
	for i := 0; i < ne; i++ {
		u, v := int(enc[2+n+2*i]), int(enc[2+n+2*i+1])
		if err := X.AddEdge(u, v); err != nil {
			return err
		}
	}
	return nil
}
