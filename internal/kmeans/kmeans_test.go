package kmeans

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/memory"
	"github.com/sagpant/mlpack/internal/metric"
	"github.com/sagpant/mlpack/internal/table"
)

// clusterShard draws points around center with a little noise.
func clusterShard(rng *rand.Rand, center []float64, n int) []float64 {
	values := make([]float64, 0, n*len(center))
	for i := 0; i < n; i++ {
		for _, c := range center {
			values = append(values, c+rng.NormFloat64()*0.5)
		}
	}
	return values
}

func TestRefineSeparatedClusters(t *testing.T) {
	size := 3
	centers := [][]float64{{0, 0}, {50, 0}, {0, 50}}
	perRank := 60

	var mu sync.Mutex
	results := make([]*Result, size)

	err := comm.Launch(size, func(g comm.Group) error {
		rng := rand.New(rand.NewSource(int64(g.Rank() + 1)))
		values := clusterShard(rng, centers[g.Rank()], perRank)
		tab, err := table.FromPoints(memory.NewHeapAllocator(), 2, values, g.Rank())
		if err != nil {
			return err
		}

		// Start each rank's centroid slightly off its true cluster mean.
		start := []float64{centers[g.Rank()][0] + 3, centers[g.Rank()][1] - 3}
		r := &Refiner{}
		res, err := r.Refine(g, metric.Euclidean{}, tab, start)
		if err != nil {
			return err
		}

		mu.Lock()
		results[g.Rank()] = res
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	total := 0
	for rank, res := range results {
		total += res.TotalOwned

		// With well-separated clusters every rank keeps its own points.
		assert.Equal(t, perRank, res.TotalOwned, "rank %d ownership", rank)
		for i, target := range res.Assignments {
			assert.Equal(t, rank, target, "rank %d point %d", rank, i)
		}

		// The refined center settles near the true cluster mean.
		m := metric.Euclidean{}
		assert.Less(t, m.Distance(res.Center, centers[rank]), 1.0, "rank %d center drift", rank)
	}
	assert.Equal(t, size*perRank, total)
}

// Ownership totals must equal the group-wide point count even when
// shards are deliberately misplaced and most points migrate.
func TestRefineConservesPoints(t *testing.T) {
	size := 3
	centers := [][]float64{{0, 0}, {40, 0}, {80, 0}}
	perRank := 50

	var mu sync.Mutex
	results := make([]*Result, size)

	err := comm.Launch(size, func(g comm.Group) error {
		rng := rand.New(rand.NewSource(int64(g.Rank()) * 31))
		// Each rank holds points of the NEXT rank's cluster.
		values := clusterShard(rng, centers[(g.Rank()+1)%size], perRank)
		tab, err := table.FromPoints(memory.NewHeapAllocator(), 2, values, g.Rank())
		if err != nil {
			return err
		}

		r := &Refiner{Iterations: 5}
		res, err := r.Refine(g, metric.Euclidean{}, tab, centers[g.Rank()])
		if err != nil {
			return err
		}

		// Senders and receivers must agree: the sum of points each rank
		// assigns away equals what the targets expect to own.
		mu.Lock()
		results[g.Rank()] = res
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	sent := make([]int, size)
	total := 0
	for _, res := range results {
		total += res.TotalOwned
		for _, target := range res.Assignments {
			require.GreaterOrEqual(t, target, 0)
			require.Less(t, target, size)
			sent[target]++
		}
	}
	assert.Equal(t, size*perRank, total)
	for rank, res := range results {
		assert.Equal(t, res.TotalOwned, sent[rank], "rank %d promised ownership", rank)
	}
}

func TestRefineRejectsDimensionMismatch(t *testing.T) {
	err := comm.Launch(1, func(g comm.Group) error {
		tab, err := table.FromPoints(memory.NewHeapAllocator(), 2, []float64{1, 2}, 0)
		if err != nil {
			return err
		}
		r := &Refiner{}
		if _, err := r.Refine(g, metric.Euclidean{}, tab, []float64{1, 2, 3}); err == nil {
			return fmt.Errorf("expected dimension mismatch error")
		}
		return nil
	})
	require.NoError(t, err)
}
