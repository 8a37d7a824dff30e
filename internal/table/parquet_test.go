package table

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagpant/mlpack/internal/memory"
)

func TestShardRoundTrip(t *testing.T) {
	source := filepath.Join(t.TempDir(), "points")
	values := []float64{
		1.5, 2.5,
		3.5, 4.5,
		5.5, 6.5,
	}
	require.NoError(t, WriteShard(source, 2, 2, values))

	tab, err := Load(memory.NewHeapAllocator(), source, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, tab.EntryCount())
	assert.Equal(t, 2, tab.AttributeCount())
	assert.Equal(t, []float64{3.5, 4.5}, tab.Row(1))
	assert.Equal(t, MakeID(2, 1), tab.ID(1))
}

func TestShardPath(t *testing.T) {
	assert.Equal(t, "data/points.rank-3.parquet", ShardPath("data/points", 3))
}

func TestLoadMissingShard(t *testing.T) {
	_, err := Load(memory.NewHeapAllocator(), filepath.Join(t.TempDir(), "absent"), 0)
	assert.Error(t, err)
}

func TestWriteShardRejectsRaggedValues(t *testing.T) {
	source := filepath.Join(t.TempDir(), "ragged")
	assert.Error(t, WriteShard(source, 0, 2, []float64{1, 2, 3}))
}
