package graph_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waygraph/pkg/graph"
)

func buildTestGraph() *graph.Graph {
	lat := []int32{100_000, 110_000, 120_000, 130_000}
	lon := []int32{10_300_000, 10_310_000, 10_320_000, 10_330_000}
	edges := []graph.DirectedEdgeSpec{
		{From: 0, To: 1, Weight: 100, DistanceM: 50, NameID: 1},
		{From: 1, To: 0, Weight: 100, DistanceM: 50, NameID: 1},
		{From: 1, To: 2, Weight: 200, DistanceM: 90},
		{From: 2, To: 1, Weight: 250, DistanceM: 90, IsRoundabout: true},
		{From: 0, To: 3, Weight: 300, IsAccessRestricted: true},
	}
	g := graph.FromDirected(4, lat, lon, []bool{false, true, false, false}, []bool{false, false, true, false}, edges)
	g.Names = []string{"Main Street"}
	return g
}

func TestBinaryRoundTrip(t *testing.T) {
	original := buildTestGraph()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.graph.bin")

	require.NoError(t, graph.WriteBinary(path, original))

	loaded, err := graph.ReadBinary(path)
	require.NoError(t, err)

	assert.Equal(t, original.NumNodes, loaded.NumNodes)
	assert.Equal(t, original.NodeLatE5, loaded.NodeLatE5)
	assert.Equal(t, original.NodeLonE5, loaded.NodeLonE5)
	assert.Equal(t, original.IsBarrier, loaded.IsBarrier)
	assert.Equal(t, original.IsTrafficLight, loaded.IsTrafficLight)
	assert.Equal(t, original.FirstOut, loaded.FirstOut)
	require.Len(t, loaded.Edges, len(original.Edges))
	for i := range original.Edges {
		assert.Equal(t, original.Edges[i], loaded.Edges[i])
	}
}

func TestBinaryRoundTripEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.graph.bin")

	g := graph.FromDirected(0, nil, nil, nil, nil, nil)
	require.NoError(t, graph.WriteBinary(path, g))

	loaded, err := graph.ReadBinary(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), loaded.NumNodes)
	assert.Equal(t, uint32(0), loaded.NumEdges())
}

func TestNamesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.names.bin")

	original := []string{"Main Street", "", "Chain Ave", "5th Ave NE"}
	require.NoError(t, graph.WriteNames(path, original))

	loaded, err := graph.ReadNames(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestNamesRoundTripEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.names.bin")

	require.NoError(t, graph.WriteNames(path, nil))
	loaded, err := graph.ReadNames(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestNamesInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.names.bin")
	require.NoError(t, os.WriteFile(path, []byte("garbage header bytes here"), 0644))

	_, err := graph.ReadNames(path)
	assert.Error(t, err)
}

func TestBinaryInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.graph.bin")
	require.NoError(t, os.WriteFile(path, []byte("NOT_A_WAYGRAPH_HEADER_BLAH_BLAH_MORE_DATA"), 0644))

	_, err := graph.ReadBinary(path)
	assert.Error(t, err)
}

func TestBinaryTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.graph.bin")
	require.NoError(t, os.WriteFile(path, []byte("WAYGRAPH"), 0644))

	_, err := graph.ReadBinary(path)
	assert.Error(t, err)
}

func TestRestrictionsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.restrictions.bin")

	original := []graph.Restriction{
		{From: 1, Via: 2, To: 3, IsOnly: false, ExceptMask: 0},
		{From: 4, Via: 5, To: 6, IsOnly: true, ExceptMask: 0b0011},
	}
	require.NoError(t, graph.WriteRestrictions(path, original))

	loaded, err := graph.ReadRestrictions(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, original, loaded)
}

func TestRestrictionsRoundTripEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.restrictions.bin")

	require.NoError(t, graph.WriteRestrictions(path, nil))
	loaded, err := graph.ReadRestrictions(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRestrictionsInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.restrictions.bin")
	require.NoError(t, os.WriteFile(path, []byte("garbage header bytes here"), 0644))

	_, err := graph.ReadRestrictions(path)
	assert.Error(t, err)
}
