package ch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type edgeSpec struct {
	from, to, weight uint32
}

func toSlices(edges []edgeSpec) (from, to, weight []uint32) {
	for _, e := range edges {
		from = append(from, e.from)
		to = append(to, e.to)
		weight = append(weight, e.weight)
	}
	return
}

func bidirectional(specs ...edgeSpec) []edgeSpec {
	var out []edgeSpec
	for _, s := range specs {
		out = append(out, s, edgeSpec{s.to, s.from, s.weight})
	}
	return out
}

// gridGraph builds a 3x2 grid, all edges bidirectional:
//
//	0 --100-- 1 --200-- 2
//	|                   |
//	300                400
//	|                   |
//	3 --500-- 4 --600-- 5
func gridGraph() []edgeSpec {
	return bidirectional(
		edgeSpec{0, 1, 100},
		edgeSpec{1, 2, 200},
		edgeSpec{0, 3, 300},
		edgeSpec{2, 5, 400},
		edgeSpec{3, 4, 500},
		edgeSpec{4, 5, 600},
	)
}

func plainDijkstra(numNodes uint32, from, to, weight []uint32, source, target uint32) uint32 {
	adj := make([][]edgeSpec, numNodes)
	for i := range from {
		adj[from[i]] = append(adj[from[i]], edgeSpec{from[i], to[i], weight[i]})
	}
	dist := make([]uint32, numNodes)
	for i := range dist {
		dist[i] = math.MaxUint32
	}
	dist[source] = 0

	type item struct {
		node, dist uint32
	}
	pq := []item{{source, 0}}
	for len(pq) > 0 {
		minIdx := 0
		for i := 1; i < len(pq); i++ {
			if pq[i].dist < pq[minIdx].dist {
				minIdx = i
			}
		}
		cur := pq[minIdx]
		pq[minIdx] = pq[len(pq)-1]
		pq = pq[:len(pq)-1]
		if cur.dist > dist[cur.node] {
			continue
		}
		for _, e := range adj[cur.node] {
			nd := cur.dist + e.weight
			if nd < dist[e.to] {
				dist[e.to] = nd
				pq = append(pq, item{e.to, nd})
			}
		}
	}
	return dist[target]
}

// chQuery runs a verification-style bidirectional Dijkstra over the
// overlay, mirroring the shape of the real query engine's stopping rule
// without shortcut unpacking (distances only).
func chQuery(ch *CHGraph, source, target uint32) uint32 {
	distFwd := make([]uint32, ch.NumNodes)
	distBwd := make([]uint32, ch.NumNodes)
	for i := range distFwd {
		distFwd[i] = math.MaxUint32
		distBwd[i] = math.MaxUint32
	}
	distFwd[source] = 0
	distBwd[target] = 0

	type item struct {
		node, dist uint32
	}
	fwdPQ := []item{{source, 0}}
	bwdPQ := []item{{target, 0}}
	best := uint32(math.MaxUint32)

	popMin := func(pq *[]item) item {
		minIdx := 0
		for i := 1; i < len(*pq); i++ {
			if (*pq)[i].dist < (*pq)[minIdx].dist {
				minIdx = i
			}
		}
		cur := (*pq)[minIdx]
		(*pq)[minIdx] = (*pq)[len(*pq)-1]
		*pq = (*pq)[:len(*pq)-1]
		return cur
	}
	peekMin := func(pq []item) uint32 {
		if len(pq) == 0 {
			return math.MaxUint32
		}
		m := pq[0].dist
		for _, it := range pq[1:] {
			if it.dist < m {
				m = it.dist
			}
		}
		return m
	}

	for len(fwdPQ) > 0 || len(bwdPQ) > 0 {
		if len(fwdPQ) > 0 && peekMin(fwdPQ) < best {
			cur := popMin(&fwdPQ)
			if cur.dist <= distFwd[cur.node] {
				if distBwd[cur.node] < math.MaxUint32 {
					if cand := cur.dist + distBwd[cur.node]; cand < best {
						best = cand
					}
				}
				for e := ch.FwdFirstOut[cur.node]; e < ch.FwdFirstOut[cur.node+1]; e++ {
					v := ch.FwdHead[e]
					nd := cur.dist + ch.FwdWeight[e]
					if nd < distFwd[v] {
						distFwd[v] = nd
						fwdPQ = append(fwdPQ, item{v, nd})
					}
				}
			}
		}
		if len(bwdPQ) > 0 && peekMin(bwdPQ) < best {
			cur := popMin(&bwdPQ)
			if cur.dist <= distBwd[cur.node] {
				if distFwd[cur.node] < math.MaxUint32 {
					if cand := distFwd[cur.node] + cur.dist; cand < best {
						best = cand
					}
				}
				for e := ch.BwdFirstOut[cur.node]; e < ch.BwdFirstOut[cur.node+1]; e++ {
					v := ch.BwdHead[e]
					nd := cur.dist + ch.BwdWeight[e]
					if nd < distBwd[v] {
						distBwd[v] = nd
						bwdPQ = append(bwdPQ, item{v, nd})
					}
				}
			}
		}
		if peekMin(fwdPQ) >= best && peekMin(bwdPQ) >= best {
			break
		}
	}
	return best
}

func TestContractEmptyGraph(t *testing.T) {
	ch := Contract(0, nil, nil, nil, 1.0)
	assert.Equal(t, uint32(0), ch.NumNodes)
}

func TestContractSingleNode(t *testing.T) {
	ch := Contract(1, nil, nil, nil, 1.0)
	require.Equal(t, uint32(1), ch.NumNodes)
	assert.Len(t, ch.Rank, 1)
}

func TestContractFullyRanksAllNodes(t *testing.T) {
	specs := gridGraph()
	from, to, weight := toSlices(specs)
	ch := Contract(6, from, to, weight, 1.0)

	require.Equal(t, uint32(6), ch.NumNodes)
	seen := make(map[uint32]bool)
	for _, r := range ch.Rank {
		assert.Less(t, r, ch.NumNodes)
		seen[r] = true
	}
	assert.Len(t, seen, 6, "ranks must be a permutation of 0..5")
}

func TestContractCorrectnessFullContraction(t *testing.T) {
	specs := gridGraph()
	from, to, weight := toSlices(specs)
	ch := Contract(6, from, to, weight, 1.0)

	for s := uint32(0); s < 6; s++ {
		for d := uint32(0); d < 6; d++ {
			if s == d {
				continue
			}
			want := plainDijkstra(6, from, to, weight, s, d)
			got := chQuery(ch, s, d)
			assert.Equalf(t, want, got, "s=%d d=%d", s, d)
		}
	}
}

func TestContractCorrectnessPartialContraction(t *testing.T) {
	specs := gridGraph()
	from, to, weight := toSlices(specs)
	ch := Contract(6, from, to, weight, 0.5)

	var coreCount int
	for _, c := range ch.IsCore {
		if c {
			coreCount++
		}
	}
	assert.Greater(t, coreCount, 0, "partial contraction should leave a core")

	for s := uint32(0); s < 6; s++ {
		for d := uint32(0); d < 6; d++ {
			if s == d {
				continue
			}
			want := plainDijkstra(6, from, to, weight, s, d)
			got := chQuery(ch, s, d)
			assert.Equalf(t, want, got, "s=%d d=%d", s, d)
		}
	}
}

func TestContractLinearChain(t *testing.T) {
	// One-way chain 0->1->2->3->4.
	from := []uint32{0, 1, 2, 3}
	to := []uint32{1, 2, 3, 4}
	weight := []uint32{100, 200, 300, 400}
	ch := Contract(5, from, to, weight, 1.0)

	want := plainDijkstra(5, from, to, weight, 0, 4)
	got := chQuery(ch, 0, 4)
	assert.Equal(t, want, got)
	assert.Equal(t, uint32(1000), want)
}

func TestContractDisconnectedGraph(t *testing.T) {
	// Two disjoint edges: 0->1 and 2->3.
	from := []uint32{0, 2}
	to := []uint32{1, 3}
	weight := []uint32{10, 20}
	ch := Contract(4, from, to, weight, 1.0)

	got := chQuery(ch, 0, 3)
	assert.Equal(t, uint32(math.MaxUint32), got)
}
