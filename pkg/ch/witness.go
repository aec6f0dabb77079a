package ch

// witnessHeapItem is an entry in the witness search min-heap.
type witnessHeapItem struct {
	node uint32
	dist uint32
}

// witnessHeap is a concrete-typed binary min-heap for witness search,
// kept from the teacher's hand-rolled implementation rather than
// container/heap, since this runs in the innermost loop of contraction.
type witnessHeap struct {
	items []witnessHeapItem
}

func (h *witnessHeap) Len() int { return len(h.items) }

func (h *witnessHeap) Push(node uint32, dist uint32) {
	h.items = append(h.items, witnessHeapItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *witnessHeap) Pop() witnessHeapItem {
	top := h.items[0]
	n := len(h.items) - 1
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top
}

func (h *witnessHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.dist >= h.items[parent].dist {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

func (h *witnessHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].dist < h.items[child].dist {
			child = right
		}
		if item.dist <= h.items[child].dist {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

func (h *witnessHeap) Reset() { h.items = h.items[:0] }

// witnessState holds reusable per-goroutine state for witness searches,
// avoiding per-call map allocation via a touched-list reset pattern.
type witnessState struct {
	dist    []uint32
	touched []uint32
	heap    witnessHeap
}

func newWitnessState(numNodes uint32) *witnessState {
	dist := make([]uint32, numNodes)
	for i := range dist {
		dist[i] = maxUint32
	}
	return &witnessState{dist: dist, heap: witnessHeap{items: make([]witnessHeapItem, 0, 64)}}
}

func (ws *witnessState) reset() {
	for _, n := range ws.touched {
		ws.dist[n] = maxUint32
	}
	ws.touched = ws.touched[:0]
	ws.heap.Reset()
}

// batchWitnessSearch runs a single bounded Dijkstra from source on wg's
// active subgraph, excluding the node being contracted, bounded to
// maxWeight and settledBound settled nodes. One search per incoming
// neighbor covers every outgoing target in the pair being considered,
// reducing search count from O(|in|*|out|) to O(|in|) (spec section
// 4.5.3's witness search, run once here and read back per target via
// ws.dist).
func batchWitnessSearch(ws *witnessState, wg *workingGraph, source, excluded uint32, maxWeight uint32, settledBound int) {
	ws.reset()
	ws.dist[source] = 0
	ws.touched = append(ws.touched, source)
	ws.heap.Push(source, 0)

	settled := 0
	for ws.heap.Len() > 0 {
		cur := ws.heap.Pop()
		if cur.dist > ws.dist[cur.node] {
			continue
		}
		settled++
		if settled >= settledBound {
			break
		}
		if cur.dist > maxWeight {
			continue
		}
		for _, e := range wg.outAdj[cur.node] {
			if e.to == excluded || !wg.active[e.to] {
				continue
			}
			nd := cur.dist + e.weight
			if nd > maxWeight {
				continue
			}
			if nd < ws.dist[e.to] {
				if ws.dist[e.to] == maxUint32 {
					ws.touched = append(ws.touched, e.to)
				}
				ws.dist[e.to] = nd
				ws.heap.Push(e.to, nd)
			}
		}
	}
}
