package ch

import (
	"hash/fnv"
	"log"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// renumberInterval is how many contraction rounds pass between
// renumbering passes (spec section 4.5.5 step 7: "periodically renumber
// nodes so that uncontracted nodes occupy the low ID range").
const renumberInterval = 8

// Contract builds a contraction hierarchy over a turn graph given as
// parallel directed-edge arrays (from[i]->to[i] with weight[i]), over
// numNodes edge-based nodes. coreFactor is the fraction of nodes to
// contract before stopping (spec section 4.5.6); the remainder forms
// the core.
func Contract(numNodes uint32, from, to, weight []uint32, coreFactor float64) *CHGraph {
	if numNodes == 0 {
		return &CHGraph{}
	}

	wg := newWorkingGraph(numNodes, from, to, weight)
	depth := make([]int32, numNodes)
	origID := make([]uint32, numNodes)
	for i := range origID {
		origID[i] = uint32(i)
	}
	rank := make([]uint32, numNodes)

	wsPool := &sync.Pool{New: func() any { return newWitnessState(uint32(len(wg.active))) }}

	remainingThreshold := uint32(float64(numNodes) * (1 - coreFactor))
	var contractedOrder uint32
	activeCount := numNodes
	round := 0

	for activeCount > remainingThreshold {
		round++

		activeList := make([]uint32, 0, activeCount)
		for v := uint32(0); v < uint32(len(wg.active)); v++ {
			if wg.active[v] {
				activeList = append(activeList, v)
			}
		}
		if len(activeList) == 0 {
			break
		}

		priority := make([]float64, len(wg.active))
		{
			var g errgroup.Group
			g.SetLimit(max(1, runtime.NumCPU()))
			for _, v := range activeList {
				v := v
				g.Go(func() error {
					ws := wsPool.Get().(*witnessState)
					priority[v] = computePriority(ws, wg, v, depth)
					wsPool.Put(ws)
					return nil
				})
			}
			_ = g.Wait()
		}

		independent := computeIndependentSet(wg, activeList, priority, origID)
		if len(independent) == 0 {
			best := activeList[0]
			for _, v := range activeList {
				if priority[v] < priority[best] {
					best = v
				}
			}
			independent = []uint32{best}
		}

		{
			var g errgroup.Group
			g.SetLimit(max(1, runtime.NumCPU()))
			// Goroutines only read the working graph and collect their
			// shortcuts in their own slot of buf; the shortcuts are
			// inserted serially after the barrier, so no witness search
			// runs while an adjacency list is being appended to.
			buf := make([][]simShortcut, len(independent))
			for i, v := range independent {
				i, v := i, v
				g.Go(func() error {
					ws := wsPool.Get().(*witnessState)
					buf[i], _, _ = simulateContraction(ws, wg, v, looseSettledBound)
					wsPool.Put(ws)
					return nil
				})
			}
			_ = g.Wait()
			for i, v := range independent {
				for _, sc := range buf[i] {
					wg.insertShortcut(sc.from, sc.to, sc.weight, int32(v), sc.origCount)
				}
			}
		}

		for _, v := range independent {
			nd := depth[v] + 1
			for _, e := range wg.activeOut(v) {
				if nd > depth[e.to] {
					depth[e.to] = nd
				}
			}
			for _, e := range wg.activeIn(v) {
				if nd > depth[e.to] {
					depth[e.to] = nd
				}
			}
		}

		for _, v := range independent {
			rank[origID[v]] = contractedOrder
			contractedOrder++
			wg.deactivate(v)
		}
		activeCount -= uint32(len(independent))

		if round%renumberInterval == 0 {
			wg, depth, origID = renumber(wg, depth, origID)
			wsPool = &sync.Pool{New: func() any { return newWitnessState(uint32(len(wg.active))) }}
		}

		log.Printf("contraction round %d: contracted %d nodes, %d remaining", round, len(independent), activeCount)
	}

	isCore := make([]bool, numNodes)
	for v := uint32(0); v < uint32(len(wg.active)); v++ {
		if wg.active[v] {
			isCore[origID[v]] = true
			rank[origID[v]] = contractedOrder
			contractedOrder++
		}
	}

	log.Printf("contraction complete: %d/%d nodes contracted, %d core nodes", contractedOrder-uint32(countTrue(isCore)), numNodes, countTrue(isCore))

	return buildOverlay(numNodes, wg, origID, rank, isCore)
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

// dominates reports whether v should be contracted before u: strictly
// lower priority, or equal priority with a smaller stable hash of the
// node's original ID (spec section 4.5.4).
func dominates(priority []float64, origID []uint32, v, u uint32) bool {
	if priority[v] != priority[u] {
		return priority[v] < priority[u]
	}
	return stableHash(origID[v]) < stableHash(origID[u])
}

func stableHash(id uint32) uint64 {
	h := fnv.New64a()
	var b [4]byte
	b[0] = byte(id)
	b[1] = byte(id >> 8)
	b[2] = byte(id >> 16)
	b[3] = byte(id >> 24)
	h.Write(b[:])
	return h.Sum64()
}

// computeIndependentSet selects the nodes from activeList that dominate
// every active node within two hops (spec section 4.5.4), so the
// selected set can be contracted in parallel without conflicting
// shortcut insertions.
func computeIndependentSet(wg *workingGraph, activeList []uint32, priority []float64, origID []uint32) []uint32 {
	independent := make([]bool, len(wg.active))
	var g errgroup.Group
	g.SetLimit(max(1, runtime.NumCPU()))

	for _, v := range activeList {
		v := v
		g.Go(func() error {
			independent[v] = isLocalMinimum(wg, priority, origID, v)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]uint32, 0, len(activeList)/4+1)
	for _, v := range activeList {
		if independent[v] {
			out = append(out, v)
		}
	}
	return out
}

func isLocalMinimum(wg *workingGraph, priority []float64, origID []uint32, v uint32) bool {
	for _, u := range twoHopActive(wg, v) {
		if !dominates(priority, origID, v, u) {
			return false
		}
	}
	return true
}

// twoHopActive returns the distinct active nodes within two hops of v
// (excluding v itself), over the undirected skeleton of wg's active
// edges.
func twoHopActive(wg *workingGraph, v uint32) []uint32 {
	seen := map[uint32]bool{v: true}
	var oneHop []uint32
	collect := func(e chEdge) {
		if wg.active[e.to] && !seen[e.to] {
			seen[e.to] = true
			oneHop = append(oneHop, e.to)
		}
	}
	for _, e := range wg.outAdj[v] {
		collect(e)
	}
	for _, e := range wg.inAdj[v] {
		collect(e)
	}

	out := append([]uint32{}, oneHop...)
	for _, n := range oneHop {
		add := func(e chEdge) {
			if wg.active[e.to] && !seen[e.to] {
				seen[e.to] = true
				out = append(out, e.to)
			}
		}
		for _, e := range wg.outAdj[n] {
			add(e)
		}
		for _, e := range wg.inAdj[n] {
			add(e)
		}
	}
	return out
}

// renumber rebuilds the working graph with active nodes occupying the
// low ID range, for cache locality in subsequent rounds (spec section
// 4.5.5 step 7). origID is updated in lockstep so the final overlay can
// still translate working IDs back to the stable edge-based node IDs.
func renumber(wg *workingGraph, depth []int32, origID []uint32) (*workingGraph, []int32, []uint32) {
	n := uint32(len(wg.active))
	order := make([]uint32, 0, n)
	for old := uint32(0); old < n; old++ {
		if wg.active[old] {
			order = append(order, old)
		}
	}
	for old := uint32(0); old < n; old++ {
		if !wg.active[old] {
			order = append(order, old)
		}
	}

	newID := make([]uint32, n)
	for newIdx, old := range order {
		newID[old] = uint32(newIdx)
	}

	newWg := &workingGraph{
		outAdj: make([][]chEdge, n),
		inAdj:  make([][]chEdge, n),
		active: make([]bool, n),
	}
	newDepth := make([]int32, n)
	newOrigID := make([]uint32, n)

	for newIdx, old := range order {
		newWg.active[newIdx] = wg.active[old]
		newDepth[newIdx] = depth[old]
		newOrigID[newIdx] = origID[old]

		for _, e := range wg.outAdj[old] {
			newWg.outAdj[newIdx] = append(newWg.outAdj[newIdx], remapEdge(e, newID))
		}
		for _, e := range wg.inAdj[old] {
			newWg.inAdj[newIdx] = append(newWg.inAdj[newIdx], remapEdge(e, newID))
		}
	}

	return newWg, newDepth, newOrigID
}

func remapEdge(e chEdge, newID []uint32) chEdge {
	out := chEdge{to: newID[e.to], weight: e.weight, middle: -1, origCount: e.origCount}
	if e.middle >= 0 {
		out.middle = int32(newID[uint32(e.middle)])
	}
	return out
}

// buildOverlay produces the forward/backward upward CSR graphs from the
// final working graph, translating working IDs back to the stable
// edge-based node IDs via origID (spec section 4.5.7).
func buildOverlay(numNodes uint32, wg *workingGraph, origID []uint32, rank []uint32, isCore []bool) *CHGraph {
	type csrEdge struct {
		from, to uint32
		weight   uint32
		middle   int32
	}
	var fwd, bwd []csrEdge

	n := uint32(len(wg.active))
	for workingU := uint32(0); workingU < n; workingU++ {
		origU := origID[workingU]
		for _, e := range wg.outAdj[workingU] {
			origV := origID[e.to]
			if rank[origU] < rank[origV] {
				fwd = append(fwd, csrEdge{from: origU, to: origV, weight: e.weight, middle: translateMiddle(e.middle, origID)})
			}
		}
		for _, e := range wg.inAdj[workingU] {
			origV := origID[e.to]
			if rank[origU] < rank[origV] {
				bwd = append(bwd, csrEdge{from: origU, to: origV, weight: e.weight, middle: translateMiddle(e.middle, origID)})
			}
		}
	}

	build := func(edges []csrEdge) ([]uint32, []uint32, []uint32, []int32) {
		firstOut := make([]uint32, numNodes+1)
		for _, e := range edges {
			firstOut[e.from+1]++
		}
		for i := uint32(1); i <= numNodes; i++ {
			firstOut[i] += firstOut[i-1]
		}
		head := make([]uint32, len(edges))
		w := make([]uint32, len(edges))
		mid := make([]int32, len(edges))
		pos := make([]uint32, numNodes)
		copy(pos, firstOut[:numNodes])
		for _, e := range edges {
			p := pos[e.from]
			head[p] = e.to
			w[p] = e.weight
			mid[p] = e.middle
			pos[e.from]++
		}
		return firstOut, head, w, mid
	}

	fwdFirstOut, fwdHead, fwdWeight, fwdMiddle := build(fwd)
	bwdFirstOut, bwdHead, bwdWeight, bwdMiddle := build(bwd)

	return &CHGraph{
		NumNodes:    numNodes,
		Rank:        rank,
		IsCore:      isCore,
		FwdFirstOut: fwdFirstOut, FwdHead: fwdHead, FwdWeight: fwdWeight, FwdMiddle: fwdMiddle,
		BwdFirstOut: bwdFirstOut, BwdHead: bwdHead, BwdWeight: bwdWeight, BwdMiddle: bwdMiddle,
	}
}

func translateMiddle(middle int32, origID []uint32) int32 {
	if middle < 0 {
		return -1
	}
	return int32(origID[uint32(middle)])
}
