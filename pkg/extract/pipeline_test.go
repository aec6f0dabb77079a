package extract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waygraph/pkg/extsort"
	"waygraph/pkg/ids"
	"waygraph/pkg/osmsource"
	"waygraph/pkg/perr"
	"waygraph/pkg/profile"
)

// fakeSource replays a fixed slice of primitives, implementing
// primitiveSource without touching any real PBF decoding.
type fakeSource struct {
	items []any
	pos   int
}

func (f *fakeSource) Next() (any, error) {
	if f.pos >= len(f.items) {
		return nil, perr.EndOfStream
	}
	v := f.items[f.pos]
	f.pos++
	return v, nil
}

// fakeProfile is a minimal profile: every "highway" way gets a flat speed,
// barrier/traffic-light nodes are recognized by tag, and restrictions are
// never excepted.
type fakeProfile struct{}

func (fakeProfile) NodeFunction(n *profile.ImportNode) {
	if n.Tags["barrier"] == "bollard" {
		n.Barrier = true
	}
	if n.Tags["highway"] == "traffic_signals" {
		n.TrafficLight = true
	}
}

func (fakeProfile) WayFunction(w *profile.ExtractionWay) {
	if w.Tags["highway"] == "" {
		return
	}
	w.Name = w.Tags["name"]
	w.TravelMode = profile.TravelModeDriving
	w.ForwardSpeedKMH = 50
	if w.Tags["oneway"] != "yes" {
		w.BackwardSpeedKMH = 50
	}
}

func (fakeProfile) Exceptions() []string { return []string{"motor_vehicle"} }

func (fakeProfile) RestrictionAllowed(cand profile.RestrictionCandidate) bool {
	for _, m := range cand.ExceptModes {
		if m == "motor_vehicle" {
			return false
		}
	}
	return true
}

func (fakeProfile) TurnPenalty(float64) uint32   { return 0 }
func (fakeProfile) UseTurnRestrictions() bool    { return true }
func (fakeProfile) TrafficSignalPenalty() uint32 { return 20 }
func (fakeProfile) UTurnPenalty() uint32         { return 200 }
func (fakeProfile) HasTurnPenaltyFunction() bool { return false }

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func readAllEdges(t *testing.T, dir string) []RawEdge {
	t.Helper()
	r, err := extsort.NewReader[RawEdge](filepath.Join(dir, EdgesFile))
	require.NoError(t, err)
	defer r.Close()
	out, err := r.ReadAll()
	require.NoError(t, err)
	return out
}

func TestRunExtractsNodesWaysAndRestrictions(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)

	src := &fakeSource{items: []any{
		&osmsource.Node{ID: 1, Lat: 0, Lon: 0, Tags: map[string]string{"barrier": "bollard"}},
		&osmsource.Node{ID: 2, Lat: 100, Lon: 100},
		&osmsource.Node{ID: 3, Lat: 200, Lon: 200, Tags: map[string]string{"highway": "traffic_signals"}},
		&osmsource.Way{ID: 10, Refs: []ids.OSMID{1, 2, 3}, Tags: map[string]string{"highway": "residential", "name": "Main St"}},
		&osmsource.Way{ID: 11, Refs: []ids.OSMID{1, 2}, Tags: map[string]string{"highway": "residential", "oneway": "yes", "name": "One Way"}},
		&osmsource.Relation{ID: 20, Tags: map[string]string{"type": "restriction", "restriction": "no_left_turn"}, Members: []osmsource.RelationMember{
			{Type: "way", Ref: 10, Role: "from"},
			{Type: "node", Ref: 2, Role: "via"},
			{Type: "way", Ref: 11, Role: "to"},
		}},
	}}

	require.NoError(t, Run(context.Background(), src, fakeProfile{}, 3, sink))
	require.NoError(t, sink.Close())

	nodes, err := extsort.NewReader[RawNode](filepath.Join(dir, NodesFile))
	require.NoError(t, err)
	nodeRecs, err := nodes.ReadAll()
	require.NoError(t, err)
	require.Len(t, nodeRecs, 3)

	var sawBarrier, sawSignal bool
	for _, n := range nodeRecs {
		if n.OSMID == 1 {
			sawBarrier = n.IsBarrier
		}
		if n.OSMID == 3 {
			sawSignal = n.IsTrafficLight
		}
	}
	assert.True(t, sawBarrier)
	assert.True(t, sawSignal)

	edges := readAllEdges(t, dir)
	// Way 10: bidirectional, 2 segments x 2 directions = 4 edges.
	// Way 11: oneway, 1 segment x 1 direction = 1 edge.
	assert.Len(t, edges, 5)

	restrictions, err := extsort.NewReader[RawRestriction](filepath.Join(dir, RestrictionsFile))
	require.NoError(t, err)
	restrictionRecs, err := restrictions.ReadAll()
	require.NoError(t, err)
	require.Len(t, restrictionRecs, 1)
	assert.EqualValues(t, 10, restrictionRecs[0].FromWay)
	assert.EqualValues(t, 2, restrictionRecs[0].ViaNode)
	assert.EqualValues(t, 11, restrictionRecs[0].ToWay)

	endpoints, err := extsort.NewReader[WayEndpoints](filepath.Join(dir, WayEndpointsFile))
	require.NoError(t, err)
	endpointRecs, err := endpoints.ReadAll()
	require.NoError(t, err)
	require.Len(t, endpointRecs, 2)
}

func TestRunDropsWaysWithoutSpeedOrDuration(t *testing.T) {
	sink := newTestSink(t)
	src := &fakeSource{items: []any{
		&osmsource.Way{ID: 1, Refs: []ids.OSMID{1, 2}, Tags: map[string]string{"landuse": "residential"}},
	}}
	require.NoError(t, Run(context.Background(), src, fakeProfile{}, 2, sink))
	require.Empty(t, sink.Names())
}

func TestRunSkipsRestrictionWithExceptedMode(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)
	src := &fakeSource{items: []any{
		&osmsource.Relation{ID: 1, Tags: map[string]string{"type": "restriction", "restriction": "no_u_turn", "except": "motor_vehicle"}, Members: []osmsource.RelationMember{
			{Type: "way", Ref: 1, Role: "from"},
			{Type: "node", Ref: 2, Role: "via"},
			{Type: "way", Ref: 3, Role: "to"},
		}},
	}}
	require.NoError(t, Run(context.Background(), src, fakeProfile{}, 1, sink))
	require.NoError(t, sink.Close())

	r, err := extsort.NewReader[RawRestriction](filepath.Join(dir, RestrictionsFile))
	require.NoError(t, err)
	recs, err := r.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunDropsOutOfBandNodes(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)
	src := &fakeSource{items: []any{
		&osmsource.Node{ID: 1, Lat: 9_000_000, Lon: 0}, // 90 degrees, out of the Mercator-safe band
	}}
	require.NoError(t, Run(context.Background(), src, fakeProfile{}, 1, sink))
	require.NoError(t, sink.Close())

	r, err := extsort.NewReader[RawNode](filepath.Join(dir, NodesFile))
	require.NoError(t, err)
	recs, err := r.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunInternsNamesConsistently(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	require.NoError(t, err)
	src := &fakeSource{items: []any{
		&osmsource.Way{ID: 1, Refs: []ids.OSMID{1, 2}, Tags: map[string]string{"highway": "residential", "name": "Elm St"}},
		&osmsource.Way{ID: 2, Refs: []ids.OSMID{3, 4}, Tags: map[string]string{"highway": "residential", "name": "Elm St"}},
	}}
	require.NoError(t, Run(context.Background(), src, fakeProfile{}, 1, sink))
	require.NoError(t, sink.Close())

	require.Equal(t, []string{"Elm St"}, sink.Names())
	edges := readAllEdges(t, dir)
	for _, e := range edges {
		assert.EqualValues(t, 0, e.NameID)
	}
}
