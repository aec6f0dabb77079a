// Package scc labels the strongly connected components of the directed
// node-based graph (spec section 4.4.1), the step that runs before
// edge-based graph construction: turns are only meaningful within a
// component that can actually be left the way it was entered. Components
// below a size floor are tagged tiny; no node is excluded from edge-based
// node construction.
package scc

import "waygraph/pkg/ids"

// Directed is the minimal view of a node-based graph scc needs: directed
// out-adjacency per node. The node-based graph stores canonical
// undirected-pair edges with forward/backward weights, so callers build
// this view once per direction they care about (strong connectivity is
// a directed-graph notion, unlike the weak-component filtering the
// canonical storage alone would support).
type Directed interface {
	NumNodes() uint32
	Successors(u ids.NodeID) []ids.NodeID
}

// TinyComponentThreshold is the node count below which a component is
// tagged "tiny" rather than dropped outright (spec section 4.4.1).
const TinyComponentThreshold = 1000

// Result is the per-node component labeling.
type Result struct {
	// Component maps each node to its component index, in the order
	// components were discovered by Tarjan's algorithm.
	Component []uint32

	// Size is the node count of each component, indexed by component
	// index.
	Size []uint32

	// Largest is the index of the largest component by node count.
	Largest uint32
}

// IsTiny reports whether comp (an index into Size) is below the tiny
// component threshold.
func (r *Result) IsTiny(comp uint32) bool {
	return r.Size[comp] < TinyComponentThreshold
}

// tarjanFrame is one stack frame of the iterative Tarjan walk,
// substituting for the call stack a recursive implementation would use.
// childIdx/children resume the successor scan of u exactly where it left
// off after a nested visit returns.
type tarjanFrame struct {
	node     ids.NodeID
	children []ids.NodeID
	childIdx int
}

// Compute labels the strongly connected components of g using Tarjan's
// algorithm, implemented iteratively with an explicit stack so it does
// not blow the call stack on the long chains real road networks produce
// (a recursive Tarjan over a single 50km arterial would recurse once per
// segment).
func Compute(g Directed) *Result {
	n := g.NumNodes()
	const unvisited = ^uint32(0)

	index := make([]uint32, n)
	lowlink := make([]uint32, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var sccStack []ids.NodeID
	var nextIndex uint32
	component := make([]uint32, n)
	for i := range component {
		component[i] = unvisited
	}
	var sizes []uint32

	var work []tarjanFrame

	for start := ids.NodeID(0); uint32(start) < n; start++ {
		if index[start] != unvisited {
			continue
		}

		work = append(work, tarjanFrame{node: start, children: g.Successors(start)})
		index[start] = nextIndex
		lowlink[start] = nextIndex
		nextIndex++
		sccStack = append(sccStack, start)
		onStack[start] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			u := top.node

			if top.childIdx < len(top.children) {
				v := top.children[top.childIdx]
				top.childIdx++

				if index[v] == unvisited {
					index[v] = nextIndex
					lowlink[v] = nextIndex
					nextIndex++
					sccStack = append(sccStack, v)
					onStack[v] = true
					work = append(work, tarjanFrame{node: v, children: g.Successors(v)})
				} else if onStack[v] {
					if index[v] < lowlink[u] {
						lowlink[u] = index[v]
					}
				}
				continue
			}

			// All children of u processed; pop and propagate lowlink.
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[u] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[u]
				}
			}

			if lowlink[u] == index[u] {
				compIdx := uint32(len(sizes))
				var size uint32
				for {
					w := sccStack[len(sccStack)-1]
					sccStack = sccStack[:len(sccStack)-1]
					onStack[w] = false
					component[w] = compIdx
					size++
					if w == u {
						break
					}
				}
				sizes = append(sizes, size)
			}
		}
	}

	var largest uint32
	for i, sz := range sizes {
		if sz > sizes[largest] {
			largest = uint32(i)
		}
	}

	return &Result{Component: component, Size: sizes, Largest: largest}
}
