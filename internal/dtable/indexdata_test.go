package dtable

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/logging"
	"github.com/sagpant/mlpack/internal/memory"
	"github.com/sagpant/mlpack/internal/metric"
	"github.com/sagpant/mlpack/internal/table"
)

func TestReplenishLeavesReachesWant(t *testing.T) {
	leaf := &table.Node{Bound: &metric.BallBound{Center: []float64{3, 7}}}

	leaves := replenishLeaves([]*table.Node{leaf}, 6)
	require.Len(t, leaves, 6)
	for _, l := range leaves {
		require.Equal(t, 2, l.Bound.Dim())
		// Every synthetic centroid averages copies of the only existing
		// center, so it reproduces it.
		assert.Equal(t, []float64{3, 7}, l.Bound.Center)
	}
}

func TestReplenishLeavesAveragesExistingCenters(t *testing.T) {
	leaves := []*table.Node{
		{Bound: &metric.BallBound{Center: []float64{0, 0}}},
		{Bound: &metric.BallBound{Center: []float64{10, 10}}},
	}

	leaves = replenishLeaves(leaves, 5)
	require.Len(t, leaves, 5)
	for _, l := range leaves[2:] {
		for _, v := range l.Bound.Center {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 10.0)
		}
	}
}

// Every rank holds copies of one identical point, so the sampled coarse
// tree cannot split and synthetic leaves must make up the shortfall; the
// protocol still has to finish with every point accounted for.
func TestIndexDataDuplicatePointShards(t *testing.T) {
	const (
		size    = 3
		perRank = 4
	)

	var mu sync.Mutex
	counts := make([]int, size)

	err := comm.Launch(size, func(g comm.Group) error {
		shard := make([]float64, 0, perRank*2)
		for i := 0; i < perRank; i++ {
			shard = append(shard, 3, 7)
		}

		dt := New(memory.NewHeapAllocator(), logging.Nop())
		if err := dt.InitFromPoints(shard, 2, g); err != nil {
			return err
		}
		if err := dt.IndexData(metric.Euclidean{}, g, 2, 0.5); err != nil {
			return err
		}

		mu.Lock()
		counts[g.Rank()] = dt.EntryCount()
		mu.Unlock()

		if !dt.IsIndexed() {
			return fmt.Errorf("table not indexed")
		}
		return nil
	})
	require.NoError(t, err)

	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, size*perRank, total, "no point created or lost")
}
