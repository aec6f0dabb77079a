// Package edgegraph builds the edge-expanded turn graph (spec section
// 4.4): edge-based nodes are directed traversals of node-based edges,
// edge-based edges are admissible turns between them. This is the graph
// the contractor actually builds shortcuts over.
package edgegraph

import (
	"waygraph/pkg/graph"
	"waygraph/pkg/ids"
	"waygraph/pkg/scc"
)

// EdgeBasedNode is one directed traversal of a canonical node-based edge.
type EdgeBasedNode struct {
	EdgeIndex       uint32
	From, To        ids.NodeID
	Weight          uint32
	NameID          uint32
	TravelMode      uint8
	IsRoundabout    bool
	ComponentID     uint32
	IsTinyComponent bool
}

// DirKey identifies an edge-based node by its directed endpoints.
type DirKey struct{ From, To ids.NodeID }

// sccView adapts Adjacency to scc.Directed: strong connectivity only
// needs the destination node of each directed edge, not which canonical
// edge record produced it.
type sccView struct{ adj *Adjacency }

func (v sccView) NumNodes() uint32                     { return v.adj.NumNodes() }
func (v sccView) Successors(u ids.NodeID) []ids.NodeID { return v.adj.SCCSuccessors(u) }

// ComputeComponents runs strongly-connected-component labeling over g's
// directed adjacency (spec section 4.4.1).
func ComputeComponents(adj *Adjacency) *scc.Result {
	return scc.Compute(sccView{adj: adj})
}

// BuildNodes constructs the edge-based node list from the node-based
// graph (spec section 4.4.2): one edge-based node per direction that
// exists on each canonical edge, tagged with whichever endpoint's
// component is used — the smaller of the two component IDs when either
// endpoint lies in a tiny component, otherwise the tail endpoint's.
//
// Compressed chains (runs of degree-2 intermediate nodes collapsed into
// one node-based edge) are not modeled here: the assembly stage this
// package consumes does not emit them, so every node-based edge is
// already a single uncompressed segment. See DESIGN.md.
func BuildNodes(g *graph.Graph, components *scc.Result) ([]EdgeBasedNode, map[DirKey]uint32) {
	nodes := make([]EdgeBasedNode, 0, len(g.Edges)*2)
	lookup := make(map[DirKey]uint32, len(g.Edges)*2)

	for idx, e := range g.Edges {
		compU := components.Component[e.Source]
		compV := components.Component[e.Target]
		tiny := components.IsTiny(compU) || components.IsTiny(compV)

		merged := compU
		if compV < merged {
			merged = compV
		}

		if e.HasForward() {
			n := EdgeBasedNode{
				EdgeIndex: uint32(idx), From: e.Source, To: e.Target, Weight: e.ForwardWeight,
				NameID: e.NameID, TravelMode: e.TravelMode, IsRoundabout: e.IsRoundabout,
				ComponentID: pickComponent(tiny, merged, compU), IsTinyComponent: tiny,
			}
			lookup[DirKey{e.Source, e.Target}] = uint32(len(nodes))
			nodes = append(nodes, n)
		}
		if e.HasBackward() {
			n := EdgeBasedNode{
				EdgeIndex: uint32(idx), From: e.Target, To: e.Source, Weight: e.BackwardWeight,
				NameID: e.NameID, TravelMode: e.TravelMode, IsRoundabout: e.IsRoundabout,
				ComponentID: pickComponent(tiny, merged, compV), IsTinyComponent: tiny,
			}
			lookup[DirKey{e.Target, e.Source}] = uint32(len(nodes))
			nodes = append(nodes, n)
		}
	}

	return nodes, lookup
}

func pickComponent(tiny bool, merged, tail uint32) uint32 {
	if tiny {
		return merged
	}
	return tail
}
