// Package table implements the per-process point container and the ball
// tree built over it. A table stores points in one flat row-major buffer
// obtained from an allocator; indexing reorders the buffer in place of a
// fresh one and records the old/new permutation so points stay
// addressable by their pre-index positions.
package table

import (
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/memory"
)

// Point is one record: a view into table storage plus the point's
// provenance id. Values aliases the table buffer and must not be held
// across a reindex.
type Point struct {
	ID     int64
	Values []float64
}

// MakeID packs a point's origin rank and its index within that rank's
// original shard into one provenance id.
func MakeID(rank, index int) int64 {
	return int64(rank)<<40 | int64(index)
}

// RankOf extracts the origin rank from a provenance id.
func RankOf(id int64) int {
	return int(id >> 40)
}

// IndexOf extracts the origin shard index from a provenance id.
func IndexOf(id int64) int {
	return int(id & (1<<40 - 1))
}

// Table is a process-private shard of points.
type Table struct {
	alloc   memory.Allocator
	data    []float64
	ids     []int64
	attrs   int
	entries int

	// oldFromNew[p] is the pre-index position of the point now stored at
	// p; newFromOld is its inverse. Both are nil until IndexData runs.
	oldFromNew []int
	newFromOld []int

	tree *Node
}

// FromPoints builds a table owning a copy of values. values holds
// entries*attrs float64s in row-major order; provenance ids are assigned
// from the given rank.
func FromPoints(alloc memory.Allocator, attrs int, values []float64, rank int) (*Table, error) {
	if attrs <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "table.from_points", "attribute count must be positive")
	}
	if len(values)%attrs != 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "table.from_points",
			"value count %d not divisible by %d attributes", len(values), attrs)
	}
	entries := len(values) / attrs
	data := alloc.AllocFloat64(len(values))
	copy(data, values)
	ids := make([]int64, entries)
	for i := range ids {
		ids[i] = MakeID(rank, i)
	}
	return &Table{alloc: alloc, data: data, ids: ids, attrs: attrs, entries: entries}, nil
}

// FromBuffer adopts a buffer previously allocated from alloc, along with
// per-point provenance ids. Redistribution builds its receive buffer
// first and then adopts it through this constructor.
func FromBuffer(alloc memory.Allocator, attrs int, data []float64, ids []int64) (*Table, error) {
	if attrs <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "table.from_buffer", "attribute count must be positive")
	}
	if len(data) != len(ids)*attrs {
		return nil, errors.Newf(errors.ErrorTypeValidation, "table.from_buffer",
			"buffer holds %d values for %d ids of %d attributes", len(data), len(ids), attrs)
	}
	return &Table{alloc: alloc, data: data, ids: ids, attrs: attrs, entries: len(ids)}, nil
}

// EntryCount returns the number of points currently stored.
func (t *Table) EntryCount() int { return t.entries }

// AttributeCount returns the dimensionality of every point.
func (t *Table) AttributeCount() int { return t.attrs }

// Data exposes the raw row-major storage. Contributions slice it
// directly during redistribution.
func (t *Table) Data() []float64 { return t.data }

// IDs exposes the per-position provenance ids, aligned with Data.
func (t *Table) IDs() []int64 { return t.ids }

// Ownership reports where the table's buffer lives.
func (t *Table) Ownership() memory.Ownership { return t.alloc.Ownership() }

// Row returns the storage-order point at position pos.
func (t *Table) Row(pos int) []float64 {
	return t.data[pos*t.attrs : (pos+1)*t.attrs]
}

// ID returns the provenance id of the point stored at position pos.
func (t *Table) ID(pos int) int64 { return t.ids[pos] }

// IsIndexed reports whether IndexData has built a tree.
func (t *Table) IsIndexed() bool { return t.tree != nil }

// Tree returns the root of the ball tree, or nil before indexing.
func (t *Table) Tree() *Node { return t.tree }

// OldFromNew returns the permutation mapping current positions to
// pre-index positions, or nil while unindexed.
func (t *Table) OldFromNew() []int { return t.oldFromNew }

// NewFromOld returns the inverse permutation, or nil while unindexed.
func (t *Table) NewFromOld() []int { return t.newFromOld }

// Get resolves the point whose pre-index position is i. On an unindexed
// table i addresses storage directly; after indexing it is routed
// through the recorded permutation, so the same i keeps resolving to the
// same point content.
func (t *Table) Get(i int, out *Point) error {
	if i < 0 || i >= t.entries {
		return errors.Newf(errors.ErrorTypeValidation, "table.get", "position %d outside [0, %d)", i, t.entries)
	}
	pos := i
	if t.newFromOld != nil {
		pos = t.newFromOld[i]
	}
	out.ID = t.ids[pos]
	out.Values = t.Row(pos)
	return nil
}

// Release returns the table's buffer to its allocator. The table must
// not be used afterwards.
func (t *Table) Release() {
	if t.data != nil {
		t.alloc.Free(t.data)
		t.data = nil
	}
	t.ids = nil
	t.tree = nil
	t.entries = 0
}
