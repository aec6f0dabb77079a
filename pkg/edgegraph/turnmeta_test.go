package edgegraph_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waygraph/pkg/edgegraph"
)

func buildTestTurns() []edgegraph.Turn {
	return []edgegraph.Turn{
		{From: 0, To: 1, Weight: 150, Instruction: edgegraph.Straight, OriginalEdgeID: 1, NameID: 3, TravelMode: 1},
		{From: 1, To: 2, Weight: 220, Instruction: edgegraph.Right, OriginalEdgeID: 2, NameID: 0, TravelMode: 1},
	}
}

func TestTurnMetaRoundTrip(t *testing.T) {
	original := buildTestTurns()
	path := filepath.Join(t.TempDir(), "turn_meta.bin")

	require.NoError(t, edgegraph.WriteTurnMeta(path, original))

	loaded, err := edgegraph.ReadTurnMeta(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(original))
	for i, t0 := range original {
		assert.Equal(t, t0.OriginalEdgeID, loaded[i].OriginalEdgeID)
		assert.Equal(t, t0.NameID, loaded[i].NameID)
		assert.Equal(t, t0.Instruction, loaded[i].Instruction)
		assert.Equal(t, t0.TravelMode, loaded[i].TravelMode)
		assert.False(t, loaded[i].IsCompressedGeometry)
	}
}

func TestTurnMetaRoundTripEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.turn_meta.bin")
	require.NoError(t, edgegraph.WriteTurnMeta(path, nil))

	loaded, err := edgegraph.ReadTurnMeta(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTurnMetaInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.turn_meta.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a turn metadata file at all"), 0o644))

	_, err := edgegraph.ReadTurnMeta(path)
	assert.Error(t, err)
}
