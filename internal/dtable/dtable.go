// Package dtable implements the distributed table: one private point
// shard per rank, a shallow global tree routing across ranks, and the
// construction protocol that balances shards and indexes them.
package dtable

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/logging"
	"github.com/sagpant/mlpack/internal/memory"
	"github.com/sagpant/mlpack/internal/table"
)

// DistributedTable owns one rank's shard, the shallow global table built
// from every rank's local tree root, and the per-rank entry counts.
type DistributedTable struct {
	alloc  memory.Allocator
	log    zerolog.Logger
	radius int // neighbor window; 0 means full group

	local  *table.Table
	global *table.Table
	counts []int
	size   int
	rank   int
}

// Option configures a DistributedTable.
type Option func(*DistributedTable)

// WithNeighborRadius bounds the k-means and redistribution window to the
// given number of ranks each side. The default covers the full group.
func WithNeighborRadius(radius int) Option {
	return func(dt *DistributedTable) {
		dt.radius = radius
	}
}

// New creates an empty distributed table whose buffers come from alloc.
func New(alloc memory.Allocator, logger zerolog.Logger, opts ...Option) *DistributedTable {
	dt := &DistributedTable{alloc: alloc, log: logger, size: -1, rank: -1}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Init loads the calling rank's shard of the named dataset and
// all-gathers per-rank entry counts. Every rank must call Init.
func (dt *DistributedTable) Init(source string, g comm.Group) error {
	start := time.Now()

	t, err := table.Load(dt.alloc, source, g.Rank())
	if err != nil {
		return err
	}
	dt.adopt(t, g)

	if dt.rank == 0 {
		dt.log.Info().
			Dur("elapsed", time.Since(start)).
			Int("ranks", dt.size).
			Msg("distributed table loaded")
	}
	return nil
}

// InitFromPoints is Init for in-memory data: values holds the calling
// rank's row-major shard.
func (dt *DistributedTable) InitFromPoints(values []float64, attrs int, g comm.Group) error {
	t, err := table.FromPoints(dt.alloc, attrs, values, g.Rank())
	if err != nil {
		return err
	}
	dt.adopt(t, g)
	return nil
}

func (dt *DistributedTable) adopt(t *table.Table, g comm.Group) {
	dt.local = t
	dt.size = g.Size()
	dt.rank = g.Rank()
	dt.log = logging.ForRank(dt.log, "dtable", dt.rank)
	dt.gatherCounts(g)
}

// gatherCounts refreshes the per-rank entry count vector.
func (dt *DistributedTable) gatherCounts(g comm.Group) {
	gathered := g.AllGather(comm.EncodeInt32(int32(dt.local.EntryCount())))
	if dt.counts == nil {
		dt.counts = make([]int, dt.size)
	}
	for r, payload := range gathered {
		dt.counts[r] = int(comm.DecodeInt32(payload))
	}
}

// LocalTable returns the rank's private shard.
func (dt *DistributedTable) LocalTable() *table.Table { return dt.local }

// Tree returns the global tree root, nil before IndexData.
func (dt *DistributedTable) Tree() *table.Node {
	if dt.global == nil {
		return nil
	}
	return dt.global.Tree()
}

// IsIndexed reports whether IndexData has completed.
func (dt *DistributedTable) IsIndexed() bool {
	return dt.global != nil && dt.global.IsIndexed()
}

// AttributeCount returns the dimensionality of every point.
func (dt *DistributedTable) AttributeCount() int { return dt.local.AttributeCount() }

// EntryCount returns the number of points the calling rank holds.
func (dt *DistributedTable) EntryCount() int { return dt.local.EntryCount() }

// LocalEntryCount returns the number of points held by the given rank.
// An out-of-range rank is reported, not read.
func (dt *DistributedTable) LocalEntryCount(rank int) (int, error) {
	if rank < 0 || rank >= dt.size {
		return -1, errors.Wrap(errors.ErrInvalidRank, errors.ErrorTypeValidation,
			"dtable.local_entry_count", "rank outside group").
			WithContext("rank", rank).
			WithContext("group_size", dt.size)
	}
	return dt.counts[rank], nil
}

// Get resolves the local point whose pre-index position is i,
// transparently routing through the permutation once indexed.
func (dt *DistributedTable) Get(i int, out *table.Point) error {
	return dt.local.Get(i, out)
}

// NodeIterator returns a cursor over the local points under node.
func (dt *DistributedTable) NodeIterator(node *table.Node) *table.Iterator {
	return dt.local.NodeIterator(node)
}

// RangeIterator returns a cursor over an explicit local position range.
func (dt *DistributedTable) RangeIterator(begin, count int) *table.Iterator {
	return dt.local.RangeIterator(begin, count)
}

// Save is the persistence extension point. The distributed index is not
// persisted across runs; the hook exists so callers bind a format later.
func (dt *DistributedTable) Save(path string) error {
	dt.log.Debug().Str("path", path).Msg("save requested; no persistence format bound")
	return nil
}

// Close releases the local then the global table through the allocation
// discipline each was created with.
func (dt *DistributedTable) Close() {
	if dt.local != nil {
		dt.local.Release()
		dt.local = nil
	}
	if dt.global != nil {
		dt.global.Release()
		dt.global = nil
	}
	dt.counts = nil
}
