package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	src := "; a comment\nMemory = 16\nThreads = 8\n\n# another comment\n"
	cfg, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MemoryGB)
	assert.Equal(t, 8, cfg.Threads)
}

func TestParseDefaultsThreads(t *testing.T) {
	cfg, err := Parse(strings.NewReader("Memory = 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MemoryGB)
	assert.Greater(t, cfg.Threads, 0)
}

func TestParseBadLine(t *testing.T) {
	_, err := Parse(strings.NewReader("not a valid line"))
	assert.Error(t, err)
}

func TestParseBadInt(t *testing.T) {
	_, err := Parse(strings.NewReader("Threads = many"))
	assert.Error(t, err)
}
