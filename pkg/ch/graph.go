// Package ch builds the contraction hierarchy (spec section 4.5) over
// the edge-expanded turn graph: it augments the turn graph with
// shortcut edges so that bidirectional Dijkstra, bounded by node level
// rather than graph size, can answer shortest-path queries.
package ch

const maxUint32 = ^uint32(0)

// chEdge is one edge in the mutable contraction working graph: either
// an original turn (Middle == -1) or a shortcut standing in for a
// contracted node (Middle == the contracted node's ID).
type chEdge struct {
	to        uint32
	weight    uint32
	middle    int32
	origCount uint32 // number of original turns this edge represents
}

// workingGraph is the mutable directed graph contraction runs over:
// neighbor iteration, edge insertion, and incident-edge deletion on a
// per-node basis (spec section 4.5.1).
type workingGraph struct {
	outAdj [][]chEdge
	inAdj  [][]chEdge
	active []bool
}

func newWorkingGraph(numNodes uint32, froms, tos []uint32, weights []uint32) *workingGraph {
	wg := &workingGraph{
		outAdj: make([][]chEdge, numNodes),
		inAdj:  make([][]chEdge, numNodes),
		active: make([]bool, numNodes),
	}
	for i := range wg.active {
		wg.active[i] = true
	}
	for i := range froms {
		wg.outAdj[froms[i]] = append(wg.outAdj[froms[i]], chEdge{to: tos[i], weight: weights[i], middle: -1, origCount: 1})
		wg.inAdj[tos[i]] = append(wg.inAdj[tos[i]], chEdge{to: froms[i], weight: weights[i], middle: -1, origCount: 1})
	}
	return wg
}

// activeOut/activeIn return the subset of a node's adjacency whose
// target is still uncontracted.
func (wg *workingGraph) activeOut(v uint32) []chEdge {
	all := wg.outAdj[v]
	out := all[:0:0]
	for _, e := range all {
		if wg.active[e.to] {
			out = append(out, e)
		}
	}
	return out
}

func (wg *workingGraph) activeIn(v uint32) []chEdge {
	all := wg.inAdj[v]
	out := all[:0:0]
	for _, e := range all {
		if wg.active[e.to] {
			out = append(out, e)
		}
	}
	return out
}

// insertShortcut adds a shortcut edge u->w with the given weight,
// origCount, and middle node, keeping only the minimum-weight edge per
// (from,to) pair (spec section 4.5.5 step 4).
func (wg *workingGraph) insertShortcut(u, w, weight uint32, middle int32, origCount uint32) {
	wg.outAdj[u] = upsertEdge(wg.outAdj[u], w, weight, middle, origCount)
	wg.inAdj[w] = upsertEdge(wg.inAdj[w], u, weight, middle, origCount)
}

func upsertEdge(edges []chEdge, to, weight uint32, middle int32, origCount uint32) []chEdge {
	for i, e := range edges {
		if e.to == to {
			if weight < e.weight {
				edges[i] = chEdge{to: to, weight: weight, middle: middle, origCount: origCount}
			}
			return edges
		}
	}
	return append(edges, chEdge{to: to, weight: weight, middle: middle, origCount: origCount})
}

// deactivate marks v contracted; its edges are skipped by activeOut/
// activeIn from this point on (spec section 4.5.5 step 5: "delete all
// edges incident to contracted nodes" — done lazily via the active
// filter rather than a physical slice rewrite, since every traversal
// already filters through it).
func (wg *workingGraph) deactivate(v uint32) {
	wg.active[v] = false
}

// CHGraph is the serialized contraction hierarchy: the original
// edge-based node count, a per-node contraction rank, and forward/
// backward upward CSR overlays plus a core-node bitmap (spec section
// 4.5.7).
type CHGraph struct {
	NumNodes uint32

	// Rank is the contraction order: Rank[v] < Rank[w] means v was
	// contracted before w (lower rank = lower in the hierarchy).
	Rank []uint32

	// IsCore marks nodes that were never contracted because the
	// core-factor threshold (section 4.5.6) was reached first.
	IsCore []bool

	FwdFirstOut []uint32
	FwdHead     []uint32
	FwdWeight   []uint32
	FwdMiddle   []int32

	BwdFirstOut []uint32
	BwdHead     []uint32
	BwdWeight   []uint32
	BwdMiddle   []int32
}
