package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waygraph/pkg/ids"
)

func TestFromDirectedTriangle(t *testing.T) {
	lat := []int32{100_000, 110_000, 100_000}
	lon := []int32{103_000_00, 103_000_00, 103_100_00}
	edges := []DirectedEdgeSpec{
		{From: 0, To: 1, Weight: 1000},
		{From: 1, To: 2, Weight: 2000},
		{From: 2, To: 0, Weight: 3000},
	}
	g := FromDirected(3, lat, lon, make([]bool, 3), make([]bool, 3), edges)

	require.Equal(t, uint32(3), g.NumNodes)
	require.Equal(t, uint32(3), g.NumEdges())

	var total uint32
	for _, e := range g.Edges {
		total += e.ForwardWeight + e.BackwardWeight
	}
	assert.Equal(t, uint32(6000), total)
}

func TestFromDirectedEmpty(t *testing.T) {
	g := FromDirected(0, nil, nil, nil, nil, nil)
	assert.Equal(t, uint32(0), g.NumNodes)
	assert.Equal(t, uint32(0), g.NumEdges())
}

func TestFromDirectedBidirectionalMerges(t *testing.T) {
	// A <-> B should merge into a single canonical Edge with both weights set.
	edges := []DirectedEdgeSpec{
		{From: 0, To: 1, Weight: 500},
		{From: 1, To: 0, Weight: 500},
	}
	g := FromDirected(2, make([]int32, 2), make([]int32, 2), make([]bool, 2), make([]bool, 2), edges)

	require.Equal(t, uint32(2), g.NumNodes)
	require.Equal(t, uint32(1), g.NumEdges())
	e := g.Edges[0]
	assert.Equal(t, ids.NodeID(0), e.Source)
	assert.Equal(t, ids.NodeID(1), e.Target)
	assert.Equal(t, uint32(500), e.ForwardWeight)
	assert.Equal(t, uint32(500), e.BackwardWeight)
	assert.False(t, e.IsSplit)
}

func TestFromDirectedSplitOnAsymmetricWeight(t *testing.T) {
	edges := []DirectedEdgeSpec{
		{From: 0, To: 1, Weight: 500},
		{From: 1, To: 0, Weight: 900},
	}
	g := FromDirected(2, make([]int32, 2), make([]int32, 2), make([]bool, 2), make([]bool, 2), edges)

	require.Equal(t, uint32(1), g.NumEdges())
	e := g.Edges[0]
	assert.True(t, e.IsSplit)
	assert.Equal(t, uint32(500), e.ForwardWeight)
	assert.Equal(t, uint32(900), e.BackwardWeight)
}

func TestFromDirectedSelfLoopDropped(t *testing.T) {
	edges := []DirectedEdgeSpec{{From: 0, To: 0, Weight: 10}}
	g := FromDirected(1, make([]int32, 1), make([]int32, 1), make([]bool, 1), make([]bool, 1), edges)
	assert.Equal(t, uint32(0), g.NumEdges())
}

func TestFromDirectedCSRInvariants(t *testing.T) {
	edges := []DirectedEdgeSpec{
		{From: 0, To: 1, Weight: 100},
		{From: 0, To: 2, Weight: 200},
		{From: 0, To: 3, Weight: 300},
	}
	g := FromDirected(4, make([]int32, 4), make([]int32, 4), make([]bool, 4), make([]bool, 4), edges)

	for i := ids.NodeID(1); i <= ids.NodeID(g.NumNodes); i++ {
		assert.GreaterOrEqual(t, g.FirstOut[i], g.FirstOut[i-1])
	}
	assert.Equal(t, g.NumEdges(), g.FirstOut[g.NumNodes])
}
