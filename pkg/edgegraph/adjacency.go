package edgegraph

import (
	"sort"

	"waygraph/pkg/graph"
	"waygraph/pkg/ids"
)

// DirectedEdgeRef is one directed traversal of a canonical node-based
// edge: which Edge it came from, which node it leads to, and the weight
// of that direction.
type DirectedEdgeRef struct {
	EdgeIndex uint32
	To        ids.NodeID
	Weight    uint32
}

// Adjacency is the full directed out-adjacency over a node-based graph's
// canonical, per-pair edge storage. The canonical Graph only indexes
// edges by the smaller endpoint of each pair (spec section 4.4.2's
// "u < v" iteration order), so turn enumeration — which must walk
// outward from a via-node in either direction — needs this expanded
// view built once up front.
type Adjacency struct {
	FirstOut []uint32
	Refs     []DirectedEdgeRef
}

// BuildAdjacency expands a Graph's canonical edge storage into full
// directed out-adjacency: each Edge contributes a Source->Target ref
// when its forward direction exists, and a Target->Source ref when its
// backward direction exists.
func BuildAdjacency(g *graph.Graph) *Adjacency {
	degree := make([]uint32, g.NumNodes+1)
	for _, e := range g.Edges {
		if e.HasForward() {
			degree[e.Source]++
		}
		if e.HasBackward() {
			degree[e.Target]++
		}
	}
	firstOut := make([]uint32, g.NumNodes+1)
	for i := uint32(1); i <= g.NumNodes; i++ {
		firstOut[i] = firstOut[i-1] + degree[i-1]
	}

	refs := make([]DirectedEdgeRef, firstOut[g.NumNodes])
	pos := make([]uint32, g.NumNodes)
	copy(pos, firstOut[:g.NumNodes])
	for idx, e := range g.Edges {
		if e.HasForward() {
			p := pos[e.Source]
			refs[p] = DirectedEdgeRef{EdgeIndex: uint32(idx), To: e.Target, Weight: e.ForwardWeight}
			pos[e.Source]++
		}
		if e.HasBackward() {
			p := pos[e.Target]
			refs[p] = DirectedEdgeRef{EdgeIndex: uint32(idx), To: e.Source, Weight: e.BackwardWeight}
			pos[e.Target]++
		}
	}

	for u := uint32(0); u < g.NumNodes; u++ {
		bucket := refs[firstOut[u]:firstOut[u+1]]
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].To < bucket[j].To })
	}

	return &Adjacency{FirstOut: firstOut, Refs: refs}
}

// Successors returns the directed out-edges from u.
func (a *Adjacency) Successors(u ids.NodeID) []DirectedEdgeRef {
	return a.Refs[a.FirstOut[u]:a.FirstOut[u+1]]
}

// OutDegree returns the number of directed out-edges from u.
func (a *Adjacency) OutDegree(u ids.NodeID) int {
	return int(a.FirstOut[u+1] - a.FirstOut[u])
}

// NumNodes implements scc.Directed.
func (a *Adjacency) NumNodes() uint32 { return uint32(len(a.FirstOut) - 1) }

// SCCSuccessors implements scc.Directed.Successors by projecting out the
// edge index, which strong-connectivity doesn't need.
func (a *Adjacency) SCCSuccessors(u ids.NodeID) []ids.NodeID {
	refs := a.Successors(u)
	out := make([]ids.NodeID, len(refs))
	for i, r := range refs {
		out[i] = r.To
	}
	return out
}
