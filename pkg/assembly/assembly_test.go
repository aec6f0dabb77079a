package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waygraph/pkg/extract"
	"waygraph/pkg/ids"
)

// buildSink writes the given records through a real extract.Sink so the
// assembly tests exercise the exact spill-file format the extractor
// produces, without depending on extract's pipeline goroutines.
func buildSink(t *testing.T, nodes []extract.RawNode, used []ids.OSMID, endpoints []extract.WayEndpoints, restrictions []extract.RawRestriction, edges []extract.RawEdge, names []string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	sink, err := extract.NewSink(dir)
	require.NoError(t, err)

	for _, n := range nodes {
		require.NoError(t, sink.AddNode(n))
	}
	for _, u := range used {
		require.NoError(t, sink.AddUsedNodeID(u))
	}
	for _, e := range endpoints {
		require.NoError(t, sink.AddWayEndpoints(e))
	}
	for _, r := range restrictions {
		require.NoError(t, sink.AddRestriction(r))
	}
	for _, e := range edges {
		require.NoError(t, sink.AddEdge(e))
	}
	for _, n := range names {
		assert.Equal(t, n, names[sink.InternName(n)])
	}
	require.NoError(t, sink.Close())
	return dir, sink.Names()
}

// A 3-node chain 1 -- 2 -- 3 (OSM IDs), one bidirectional way.
func chainFixture(t *testing.T) (string, []string) {
	nodes := []extract.RawNode{
		{OSMID: 1, LatE5: 0, LonE5: 0},
		{OSMID: 2, LatE5: 1000, LonE5: 0},
		{OSMID: 3, LatE5: 2000, LonE5: 0},
	}
	used := []ids.OSMID{1, 2, 2, 3}
	endpoints := []extract.WayEndpoints{
		{WayID: 100, First: 1, Second: 2, SecondLast: 2, Last: 3},
	}
	edges := []extract.RawEdge{
		{FromOSM: 1, ToOSM: 2, SpeedKMH: 50},
		{FromOSM: 2, ToOSM: 3, SpeedKMH: 50},
		{FromOSM: 3, ToOSM: 2, SpeedKMH: 50},
		{FromOSM: 2, ToOSM: 1, SpeedKMH: 50},
	}
	return buildSink(t, nodes, used, endpoints, nil, edges, []string{"Chain Ave"})
}

func TestAssembleBuildsChainGraph(t *testing.T) {
	dir, names := chainFixture(t)

	res, err := Assemble(Options{WorkDir: dir}, names)
	require.NoError(t, err)

	g := res.Graph
	assert.EqualValues(t, 3, g.NumNodes)
	assert.Equal(t, uint32(2), g.NumEdges())
	assert.Equal(t, []string{"Chain Ave"}, g.Names)
	assert.Equal(t, 0, res.DroppedUnknownNodeEdges)
	assert.Equal(t, 0, res.DroppedSelfLoopEdges)

	for _, e := range g.Edges {
		assert.True(t, e.HasForward())
		assert.True(t, e.HasBackward())
		assert.False(t, e.IsSplit)
	}
}

func TestAssembleDropsSelfLoopsAndUnknownNodes(t *testing.T) {
	nodes := []extract.RawNode{
		{OSMID: 1, LatE5: 0, LonE5: 0},
		{OSMID: 2, LatE5: 1000, LonE5: 0},
	}
	used := []ids.OSMID{1, 2}
	endpoints := []extract.WayEndpoints{{WayID: 1, First: 1, Second: 2, SecondLast: 1, Last: 2}}
	edges := []extract.RawEdge{
		{FromOSM: 1, ToOSM: 2, SpeedKMH: 50},
		{FromOSM: 1, ToOSM: 1, SpeedKMH: 50},  // self loop
		{FromOSM: 2, ToOSM: 999, SpeedKMH: 50}, // unknown node
	}
	dir, names := buildSink(t, nodes, used, endpoints, nil, edges, nil)

	res, err := Assemble(Options{WorkDir: dir}, names)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DroppedSelfLoopEdges)
	assert.Equal(t, 1, res.DroppedUnknownNodeEdges)
	assert.Equal(t, uint32(1), res.Graph.NumEdges())
}

func TestAssembleSplitsAsymmetricSpeeds(t *testing.T) {
	nodes := []extract.RawNode{
		{OSMID: 1, LatE5: 0, LonE5: 0},
		{OSMID: 2, LatE5: 1000, LonE5: 0},
	}
	used := []ids.OSMID{1, 2}
	endpoints := []extract.WayEndpoints{{WayID: 1, First: 1, Second: 2, SecondLast: 1, Last: 2}}
	edges := []extract.RawEdge{
		{FromOSM: 1, ToOSM: 2, SpeedKMH: 80},
		{FromOSM: 2, ToOSM: 1, SpeedKMH: 30},
	}
	dir, names := buildSink(t, nodes, used, endpoints, nil, edges, nil)

	res, err := Assemble(Options{WorkDir: dir}, names)
	require.NoError(t, err)
	require.Len(t, res.Graph.Edges, 1)
	e := res.Graph.Edges[0]
	assert.True(t, e.IsSplit)
	assert.Less(t, e.ForwardWeight, e.BackwardWeight)
}

func TestAssembleResolvesRestrictionFromEndpoint(t *testing.T) {
	nodes := []extract.RawNode{
		{OSMID: 1, LatE5: 0, LonE5: 0},
		{OSMID: 2, LatE5: 1000, LonE5: 0},
		{OSMID: 3, LatE5: 2000, LonE5: 0},
	}
	used := []ids.OSMID{1, 2, 2, 3}
	endpoints := []extract.WayEndpoints{
		{WayID: 10, First: 1, Second: 2, SecondLast: 1, Last: 2},
		{WayID: 20, First: 2, Second: 3, SecondLast: 2, Last: 3},
	}
	restrictions := []extract.RawRestriction{
		{FromWay: 10, ViaNode: 2, ToWay: 20, IsOnly: false},
	}
	edges := []extract.RawEdge{
		{FromOSM: 1, ToOSM: 2, SpeedKMH: 50},
		{FromOSM: 2, ToOSM: 3, SpeedKMH: 50},
	}
	dir, names := buildSink(t, nodes, used, endpoints, restrictions, edges, nil)

	res, err := Assemble(Options{WorkDir: dir}, names)
	require.NoError(t, err)
	require.Len(t, res.Restrictions, 1)
	r := res.Restrictions[0]
	assert.Equal(t, uint32(3), res.Graph.NumNodes)
	assert.False(t, r.IsOnly)
}

func TestAssembleDropsUnresolvableRestriction(t *testing.T) {
	nodes := []extract.RawNode{
		{OSMID: 1, LatE5: 0, LonE5: 0},
		{OSMID: 2, LatE5: 1000, LonE5: 0},
	}
	used := []ids.OSMID{1, 2}
	endpoints := []extract.WayEndpoints{{WayID: 10, First: 1, Second: 2, SecondLast: 1, Last: 2}}
	// References a way (99) that was never extracted.
	restrictions := []extract.RawRestriction{{FromWay: 99, ViaNode: 2, ToWay: 10, IsOnly: true}}
	edges := []extract.RawEdge{{FromOSM: 1, ToOSM: 2, SpeedKMH: 50}}
	dir, names := buildSink(t, nodes, used, endpoints, restrictions, edges, nil)

	res, err := Assemble(Options{WorkDir: dir}, names)
	require.NoError(t, err)
	assert.Empty(t, res.Restrictions)
}

func TestAssembleNeighborOfFourCases(t *testing.T) {
	we := extract.WayEndpoints{WayID: 1, First: 10, Second: 20, SecondLast: 30, Last: 40}

	n, ok := neighborOf(10, we)
	assert.True(t, ok)
	assert.EqualValues(t, 20, n)

	n, ok = neighborOf(20, we)
	assert.True(t, ok)
	assert.EqualValues(t, 10, n)

	n, ok = neighborOf(30, we)
	assert.True(t, ok)
	assert.EqualValues(t, 40, n)

	n, ok = neighborOf(40, we)
	assert.True(t, ok)
	assert.EqualValues(t, 30, n)

	_, ok = neighborOf(99, we)
	assert.False(t, ok)
}
