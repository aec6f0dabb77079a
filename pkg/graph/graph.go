// Package graph holds the node-based routing graph (spec section 3): a
// CSR-style adjacency list over dense internal node IDs, canonicalized so
// that each unordered pair (u,v) is represented by exactly one Edge
// record with forward/backward weights, sorted by (Source, Target).
package graph

import "waygraph/pkg/ids"

// Edge is one canonical node-based edge. Source < Target always (spec
// section 4.3 step 9: "canonicalize orientation"). ForwardWeight is the
// weight of the Source->Target direction if it exists (0 otherwise);
// BackwardWeight is the weight of Target->Source. IsSplit records
// whether both directions exist with different weights (spec section 3,
// "split" case); which OSM way records they came from is not compared.
type Edge struct {
	Source, Target     ids.NodeID
	ForwardWeight      uint32
	BackwardWeight     uint32
	DistanceM          int32
	NameID             uint32
	TravelMode         uint8
	IsRoundabout       bool
	IsAccessRestricted bool
	IgnoreInGrid       bool
	IsSplit            bool
}

// HasForward reports whether the Source->Target direction exists.
func (e *Edge) HasForward() bool { return e.ForwardWeight > 0 }

// HasBackward reports whether the Target->Source direction exists.
func (e *Edge) HasBackward() bool { return e.BackwardWeight > 0 }

// Graph is the node-based routing graph.
type Graph struct {
	NumNodes uint32

	NodeLatE5      []int32
	NodeLonE5      []int32
	IsBarrier      []bool
	IsTrafficLight []bool

	// FirstOut indexes Edges by the *smaller* endpoint of the pair
	// (i.e. Edge.Source), so FirstOut[u]..FirstOut[u+1] are exactly the
	// canonical pairs (u, v) with v > u, matching the iteration order
	// spec section 4.4.2 wants ("for each undirected neighbor pair (u,v)
	// with u < v").
	FirstOut []uint32
	Edges    []Edge

	Names []string
}

// EdgesFrom returns the range of canonical-pair indices whose smaller
// endpoint is u.
func (g *Graph) EdgesFrom(u ids.NodeID) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// NumEdges returns the number of canonical (u<v) edge records.
func (g *Graph) NumEdges() uint32 {
	if len(g.FirstOut) == 0 {
		return 0
	}
	return g.FirstOut[len(g.FirstOut)-1]
}

// Restriction is a turn restriction resolved to dense node IDs (spec
// section 3): a via-node triple (From, Via, To) plus whether it is an
// "only" restriction (the turn is mandatory rather than forbidden) and
// which travel modes it exempts, encoded as a bitmask over the profile's
// Exceptions() list order.
type Restriction struct {
	From, Via, To ids.NodeID
	IsOnly        bool
	ExceptMask    uint8
}
