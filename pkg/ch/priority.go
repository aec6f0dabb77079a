package ch

// simShortcut is a shortcut found necessary by simulateContraction,
// either to size a priority (simulation discards it) or to actually
// insert (the real contraction pass keeps it).
type simShortcut struct {
	from, to, weight, origCount uint32
}

// simulateContraction simulates contracting v: for every pair of active
// neighbors (u,w) with u->v and v->w, a witness search on the subgraph
// excluding v decides whether the shortcut u->w is necessary (spec
// section 4.5.2). Returns the necessary shortcuts plus the edge/
// original-edge counts that would be removed, for use both by the
// priority formula (tight settledBound, shortcuts discarded) and by the
// real contraction pass (loose settledBound, shortcuts inserted).
func simulateContraction(ws *witnessState, wg *workingGraph, v uint32, settledBound int) (shortcuts []simShortcut, edgesRemoved, origEdgesRemoved uint32) {
	in := wg.activeIn(v)
	out := wg.activeOut(v)
	edgesRemoved = uint32(len(in) + len(out))
	for _, e := range in {
		origEdgesRemoved += e.origCount
	}
	for _, e := range out {
		origEdgesRemoved += e.origCount
	}
	if len(in) == 0 || len(out) == 0 {
		return nil, edgesRemoved, origEdgesRemoved
	}

	for _, inE := range in {
		u := inE.to

		var maxOut uint32
		for _, outE := range out {
			if outE.to != u && outE.weight > maxOut {
				maxOut = outE.weight
			}
		}
		if maxOut == 0 {
			continue
		}
		maxWeight := inE.weight + maxOut

		batchWitnessSearch(ws, wg, u, v, maxWeight, settledBound)

		for _, outE := range out {
			w := outE.to
			if w == u {
				continue
			}
			scWeight := inE.weight + outE.weight
			if ws.dist[w] > scWeight {
				shortcuts = append(shortcuts, simShortcut{
					from: u, to: w, weight: scWeight,
					origCount: inE.origCount + outE.origCount,
				})
			}
		}
	}

	return shortcuts, edgesRemoved, origEdgesRemoved
}

// tightSettledBound and looseSettledBound are the two settled-node
// bounds spec section 4.5.3 names as an example pair: a tight one for
// priority simulation, a looser one for the real insertion pass.
const (
	tightSettledBound = 1000
	looseSettledBound = 2000
)

// computePriority implements the formula of spec section 4.5.2:
// priority(v) = 2*(edges_added/edges_removed) + 4*(orig_added/orig_removed) + depth(v),
// or depth(v) alone when either denominator is zero.
func computePriority(ws *witnessState, wg *workingGraph, v uint32, depth []int32) float64 {
	shortcuts, edgesRemoved, origRemoved := simulateContraction(ws, wg, v, tightSettledBound)

	var origAdded uint32
	for _, sc := range shortcuts {
		origAdded += sc.origCount
	}
	edgesAdded := uint32(len(shortcuts))

	d := float64(depth[v])
	if edgesRemoved == 0 || origRemoved == 0 {
		return d
	}
	return 2*(float64(edgesAdded)/float64(edgesRemoved)) + 4*(float64(origAdded)/float64(origRemoved)) + d
}
