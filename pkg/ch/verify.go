package ch

import (
	"context"
	"errors"
	"math"
)

// ErrNoPath is returned by VerifyQuery when the two nodes are not
// connected in the hierarchy.
var ErrNoPath = errors.New("ch: no path between nodes")

const noNode = ^uint32(0)

// VerifyResult is the outcome of a verification query: the shortest-path
// weight, plus the overlay-level node sequence the search met at
// (source, ..., meetNode, ..., target). Shortcut edges along the way are
// not unpacked into their original turns — this function exists to
// check that bidirectional search over the hierarchy reproduces plain
// Dijkstra distances, which the weight alone settles.
type VerifyResult struct {
	Weight uint32
	Path   []uint32
}

// VerifyQuery runs bidirectional Dijkstra over a built hierarchy,
// relaxing only upward edges in both directions and stopping once
// neither frontier can improve on the best meeting distance found so
// far. It exists for the contraction test suite (and any downstream
// caller) to check a produced hierarchy against plain Dijkstra on the
// turn graph it was built from; it is not a served query path.
func VerifyQuery(ctx context.Context, ch *CHGraph, source, target uint32) (*VerifyResult, error) {
	if source == target {
		return &VerifyResult{Weight: 0, Path: []uint32{source}}, nil
	}

	distFwd := make([]uint32, ch.NumNodes)
	distBwd := make([]uint32, ch.NumNodes)
	predFwd := make([]uint32, ch.NumNodes)
	predBwd := make([]uint32, ch.NumNodes)
	for i := range distFwd {
		distFwd[i] = math.MaxUint32
		distBwd[i] = math.MaxUint32
		predFwd[i] = noNode
		predBwd[i] = noNode
	}
	distFwd[source] = 0
	distBwd[target] = 0

	var fwdHeap, bwdHeap witnessHeap
	fwdHeap.Push(source, 0)
	bwdHeap.Push(target, 0)

	best := uint32(math.MaxUint32)
	meetNode := noNode
	iterations := 0

	for fwdHeap.Len() > 0 || bwdHeap.Len() > 0 {
		iterations++
		if iterations&255 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if peekDist(&fwdHeap) >= best && peekDist(&bwdHeap) >= best {
			break
		}

		if peekDist(&fwdHeap) < best {
			item := fwdHeap.Pop()
			u, d := item.node, item.dist
			if d <= distFwd[u] {
				if distBwd[u] < math.MaxUint32 {
					if cand := d + distBwd[u]; cand < best {
						best = cand
						meetNode = u
					}
				}
				for e := ch.FwdFirstOut[u]; e < ch.FwdFirstOut[u+1]; e++ {
					v := ch.FwdHead[e]
					nd := d + ch.FwdWeight[e]
					if nd < distFwd[v] {
						distFwd[v] = nd
						predFwd[v] = u
						fwdHeap.Push(v, nd)
					}
				}
			}
		}

		if peekDist(&bwdHeap) < best {
			item := bwdHeap.Pop()
			u, d := item.node, item.dist
			if d <= distBwd[u] {
				if distFwd[u] < math.MaxUint32 {
					if cand := distFwd[u] + d; cand < best {
						best = cand
						meetNode = u
					}
				}
				for e := ch.BwdFirstOut[u]; e < ch.BwdFirstOut[u+1]; e++ {
					v := ch.BwdHead[e]
					nd := d + ch.BwdWeight[e]
					if nd < distBwd[v] {
						distBwd[v] = nd
						predBwd[v] = u
						bwdHeap.Push(v, nd)
					}
				}
			}
		}
	}

	if meetNode == noNode || best == math.MaxUint32 {
		return nil, ErrNoPath
	}

	return &VerifyResult{Weight: best, Path: reconstructPath(predFwd, predBwd, meetNode)}, nil
}

func peekDist(h *witnessHeap) uint32 {
	if h.Len() == 0 {
		return math.MaxUint32
	}
	return h.items[0].dist
}

// reconstructPath walks the forward predecessor chain (source..meetNode,
// reversed into order) followed by the backward predecessor chain
// (meetNode..target, already in order since backward edges u->v stand
// for the real edge v->u).
func reconstructPath(predFwd, predBwd []uint32, meetNode uint32) []uint32 {
	var fwdPath []uint32
	for node := meetNode; node != noNode; node = predFwd[node] {
		fwdPath = append(fwdPath, node)
	}
	for i, j := 0, len(fwdPath)-1; i < j; i, j = i+1, j-1 {
		fwdPath[i], fwdPath[j] = fwdPath[j], fwdPath[i]
	}

	for node := predBwd[meetNode]; node != noNode; node = predBwd[node] {
		fwdPath = append(fwdPath, node)
	}
	return fwdPath
}
