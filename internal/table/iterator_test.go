package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagpant/mlpack/internal/memory"
	"github.com/sagpant/mlpack/internal/metric"
)

func TestRangeIteratorTraversal(t *testing.T) {
	tab, err := FromPoints(memory.NewHeapAllocator(), 1, []float64{10, 11, 12, 13, 14}, 0)
	require.NoError(t, err)

	it := tab.RangeIterator(1, 3)
	assert.Equal(t, 3, it.Count())
	assert.Equal(t, 1, it.Begin())
	assert.Equal(t, 4, it.End())

	var p Point
	var seen []float64
	for it.HasNext() {
		it.Next(&p)
		seen = append(seen, p.Values[0])
	}
	assert.Equal(t, []float64{11, 12, 13}, seen)

	it.Reset()
	assert.True(t, it.HasNext())

	// Positional access is relative to the range start.
	it.Get(2, &p)
	assert.Equal(t, 13.0, p.Values[0])

	// Unindexed tables resolve ids to storage positions.
	assert.Equal(t, 3, it.GetID(2))
}

func TestNodeIteratorCoversLeaf(t *testing.T) {
	tab := randomTable(t, 40, 2, 7)
	require.NoError(t, tab.IndexData(metric.Euclidean{}, 8))

	leaves := LeafNodesOf(tab.Tree())
	total := 0
	for _, leaf := range leaves {
		it := tab.NodeIterator(leaf)
		var p Point
		for it.HasNext() {
			it.Next(&p)
			total++
		}
	}
	assert.Equal(t, 40, total)
}

func TestIteratorIDsRouteThroughPermutation(t *testing.T) {
	tab := randomTable(t, 30, 2, 8)
	require.NoError(t, tab.IndexData(metric.Euclidean{}, 4))

	it := tab.RangeIterator(0, 30)
	var p, q Point
	for i := 0; i < 30; i++ {
		id := it.GetID(i)
		it.Get(i, &p)
		// Resolving the id through Get must land on the same point.
		require.NoError(t, tab.Get(id, &q))
		assert.Equal(t, p.Values, q.Values)
	}
}

func TestRandomPickEmptyRange(t *testing.T) {
	tab, err := FromPoints(memory.NewHeapAllocator(), 1, []float64{0, 1, 2}, 0)
	require.NoError(t, err)

	it := tab.RangeIterator(1, 0)
	p := Point{ID: 99, Values: []float64{5}}
	assert.Equal(t, -1, it.RandomPick(&p))
	assert.Zero(t, p.ID)
	assert.Nil(t, p.Values)
}

func TestRandomPickStaysInRange(t *testing.T) {
	tab, err := FromPoints(memory.NewHeapAllocator(), 1, []float64{0, 1, 2, 3, 4, 5, 6, 7}, 0)
	require.NoError(t, err)

	it := tab.RangeIterator(2, 4)
	var p Point
	for i := 0; i < 50; i++ {
		id := it.RandomPick(&p)
		assert.GreaterOrEqual(t, id, 2)
		assert.Less(t, id, 6)
		assert.Equal(t, float64(id), p.Values[0])
	}
}
