package graph

import (
	"sort"

	"waygraph/pkg/ids"
)

// DirectedEdgeSpec is one directed edge as produced upstream of
// canonicalization: a (from, to) pair with a weight and the way-level
// classification attached. FromDirected groups these into the canonical
// per-pair Edge records the routing graph stores (spec section 4.3,
// steps 9-10: canonicalize orientation, then deduplicate parallel
// edges). It generalizes the teacher's Build() — which assumed every
// input edge was already its own directed record with no dedup — into
// the canonicalizing/deduplicating constructor spec section 4.3 actually
// requires, and is used directly by tests and by any caller building a
// graph small enough to fit in RAM instead of going through the
// external-memory assembly pipeline.
type DirectedEdgeSpec struct {
	From, To           ids.NodeID
	Weight             uint32
	DistanceM          int32
	NameID             uint32
	TravelMode         uint8
	IsRoundabout       bool
	IsAccessRestricted bool
	IgnoreInGrid       bool
}

// FromDirected builds a canonical Graph from a node count, coordinates,
// and a list of directed edges. Parallel directed edges between the same
// pair are deduplicated by keeping the minimum-weight edge per direction
// (spec section 4.3 step 10); self-loops are dropped (invariant 1).
func FromDirected(numNodes uint32, latE5, lonE5 []int32, isBarrier, isTrafficLight []bool, edges []DirectedEdgeSpec) *Graph {
	if numNodes == 0 {
		return &Graph{FirstOut: []uint32{0}}
	}

	type pairKey struct{ u, v ids.NodeID }
	best := make(map[pairKey]*Edge)

	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		u, v := e.From, e.To
		forward := true
		if u > v {
			u, v = v, u
			forward = false
		}
		key := pairKey{u, v}
		rec, ok := best[key]
		if !ok {
			rec = &Edge{
				Source: u, Target: v,
				DistanceM: e.DistanceM, NameID: e.NameID, TravelMode: e.TravelMode,
				IsRoundabout: e.IsRoundabout, IsAccessRestricted: e.IsAccessRestricted,
				IgnoreInGrid: e.IgnoreInGrid,
			}
			best[key] = rec
		}
		if forward {
			if !rec.HasForward() || e.Weight < rec.ForwardWeight {
				rec.ForwardWeight = e.Weight
			}
		} else {
			if !rec.HasBackward() || e.Weight < rec.BackwardWeight {
				rec.BackwardWeight = e.Weight
			}
		}
	}

	recs := make([]Edge, 0, len(best))
	for _, rec := range best {
		// A bidirectional pair is "split" when the two directions carry
		// different weights, i.e. they were never truly one undirected
		// way segment (spec section 3/4.3 step 10).
		if rec.HasForward() && rec.HasBackward() && rec.ForwardWeight != rec.BackwardWeight {
			rec.IsSplit = true
		}
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Source != recs[j].Source {
			return recs[i].Source < recs[j].Source
		}
		return recs[i].Target < recs[j].Target
	})

	firstOut := make([]uint32, numNodes+1)
	for _, r := range recs {
		firstOut[r.Source+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	return &Graph{
		NumNodes:       numNodes,
		NodeLatE5:      latE5,
		NodeLonE5:      lonE5,
		IsBarrier:      isBarrier,
		IsTrafficLight: isTrafficLight,
		FirstOut:       firstOut,
		Edges:          recs,
	}
}
