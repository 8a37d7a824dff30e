package table

import "math/rand"

// Iterator is a cursor over a contiguous reordered position range,
// either a tree node's range or an explicit one. Point ids resolve back
// to pre-index positions through the table's permutation.
type Iterator struct {
	t       *Table
	begin   int
	end     int
	current int
}

// NodeIterator returns a cursor over the points under node.
func (t *Table) NodeIterator(node *Node) *Iterator {
	return &Iterator{t: t, begin: node.Begin, end: node.End, current: node.Begin - 1}
}

// RangeIterator returns a cursor over [begin, begin+count) reordered
// positions.
func (t *Table) RangeIterator(begin, count int) *Iterator {
	return &Iterator{t: t, begin: begin, end: begin + count, current: begin - 1}
}

// HasNext reports whether a Next call will yield a point.
func (it *Iterator) HasNext() bool {
	return it.current < it.end-1
}

// Next advances the cursor and fills out with the point there.
func (it *Iterator) Next(out *Point) {
	it.current++
	it.fill(it.current, out)
}

// Get fills out with the i-th point of the range without moving the
// cursor.
func (it *Iterator) Get(i int, out *Point) {
	it.fill(it.begin+i, out)
}

// GetID returns the pre-index position id of the i-th point of the
// range.
func (it *Iterator) GetID(i int) int {
	return it.id(it.begin + i)
}

// RandomPick fills out with a uniformly random point of the range and
// returns its pre-index position id. An empty range zeroes out and
// returns -1.
func (it *Iterator) RandomPick(out *Point) int {
	if it.end == it.begin {
		*out = Point{}
		return -1
	}
	pos := it.begin + rand.Intn(it.end-it.begin)
	it.fill(pos, out)
	return it.id(pos)
}

// Reset rewinds the cursor to before the first point.
func (it *Iterator) Reset() {
	it.current = it.begin - 1
}

// Count returns the number of points in the range.
func (it *Iterator) Count() int { return it.end - it.begin }

// Begin returns the first reordered position of the range.
func (it *Iterator) Begin() int { return it.begin }

// End returns one past the last reordered position of the range.
func (it *Iterator) End() int { return it.end }

func (it *Iterator) fill(pos int, out *Point) {
	out.ID = it.t.ids[pos]
	out.Values = it.t.Row(pos)
}

func (it *Iterator) id(pos int) int {
	if it.t.oldFromNew == nil {
		return pos
	}
	return it.t.oldFromNew[pos]
}
