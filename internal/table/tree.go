package table

import (
	"math"

	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metric"
)

// Node is one ball-tree node covering the contiguous reordered position
// range [Begin, End).
type Node struct {
	Begin, End int
	Bound      *metric.BallBound
	Left       *Node
	Right      *Node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left == nil && n.Right == nil }

// Count returns the number of points under the node.
func (n *Node) Count() int { return n.End - n.Begin }

// LeafNodesOf collects the leaves under root in depth-first order, which
// is also increasing position order.
func LeafNodesOf(root *Node) []*Node {
	if root == nil {
		return nil
	}
	var leaves []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(root)
	return leaves
}

// IndexData builds a ball tree over the table, reordering storage so
// that every node covers a contiguous position range. leafSize bounds
// leaf occupancy; an optional leavesHint instead splits the largest leaf
// until the tree has that many leaves, which is how the coarse sampled
// tree requests one leaf per process.
func (t *Table) IndexData(m metric.Metric, leafSize int, leavesHint ...int) error {
	if leafSize < 1 {
		return errors.New(errors.ErrorTypeValidation, "table.index", "leaf size must be at least 1")
	}
	hint := 0
	if len(leavesHint) > 0 {
		hint = leavesHint[0]
	}

	if t.entries == 0 {
		t.tree = &Node{Begin: 0, End: 0, Bound: metric.NewBallBound(t.attrs)}
		t.oldFromNew = []int{}
		t.newFromOld = []int{}
		return nil
	}

	b := &treeBuilder{t: t, m: m, idx: make([]int, t.entries), leafSize: leafSize}
	for i := range b.idx {
		b.idx[i] = i
	}

	root := b.node(0, t.entries)
	if hint > 0 {
		b.splitToLeafCount(root, hint)
	} else {
		b.splitRecursive(root)
	}
	t.applyPermutation(b.idx)
	t.tree = root
	return nil
}

type treeBuilder struct {
	t        *Table
	m        metric.Metric
	idx      []int
	leafSize int
}

// node computes the bounding ball of positions idx[lo:hi].
func (b *treeBuilder) node(lo, hi int) *Node {
	bound := metric.NewBallBound(b.t.attrs)
	for i := lo; i < hi; i++ {
		row := b.t.Row(b.idx[i])
		for d := 0; d < b.t.attrs; d++ {
			bound.Center[d] += row[d]
		}
	}
	inv := 1.0 / float64(hi-lo)
	for d := range bound.Center {
		bound.Center[d] *= inv
	}
	for i := lo; i < hi; i++ {
		bound.ExpandRadius(b.m, b.t.Row(b.idx[i]))
	}
	return &Node{Begin: lo, End: hi, Bound: bound}
}

func (b *treeBuilder) splitRecursive(n *Node) {
	if n.Count() <= b.leafSize {
		return
	}
	if !b.split(n) {
		return
	}
	b.splitRecursive(n.Left)
	b.splitRecursive(n.Right)
}

// splitToLeafCount grows the tree breadth-first, always splitting the
// currently largest leaf, until want leaves exist or nothing splits.
func (b *treeBuilder) splitToLeafCount(root *Node, want int) {
	leaves := []*Node{root}
	for len(leaves) < want {
		largest := -1
		for i, leaf := range leaves {
			if leaf.Count() > 1 && b.splittable(leaf) &&
				(largest < 0 || leaf.Count() > leaves[largest].Count()) {
				largest = i
			}
		}
		if largest < 0 {
			// Every remaining leaf is a duplicate clump; the caller
			// replenishes the shortfall.
			return
		}
		leaf := leaves[largest]
		leaves = append(leaves[:largest], leaves[largest+1:]...)
		if b.split(leaf) {
			leaves = append(leaves, leaf.Left, leaf.Right)
		}
	}
}

func (b *treeBuilder) splittable(n *Node) bool {
	_, width := b.widestDim(n)
	return width > 0
}

// widestDim finds the dimension with the largest extent over the node's
// points.
func (b *treeBuilder) widestDim(n *Node) (dim int, width float64) {
	attrs := b.t.attrs
	lows := make([]float64, attrs)
	highs := make([]float64, attrs)
	for d := 0; d < attrs; d++ {
		lows[d] = math.Inf(1)
		highs[d] = math.Inf(-1)
	}
	for i := n.Begin; i < n.End; i++ {
		row := b.t.Row(b.idx[i])
		for d := 0; d < attrs; d++ {
			if row[d] < lows[d] {
				lows[d] = row[d]
			}
			if row[d] > highs[d] {
				highs[d] = row[d]
			}
		}
	}
	dim, width = 0, 0
	for d := 0; d < attrs; d++ {
		if w := highs[d] - lows[d]; w > width {
			dim, width = d, w
		}
	}
	return dim, width
}

// split partitions the node's position range on the midpoint of its
// widest dimension. Returns false when every point coincides.
func (b *treeBuilder) split(n *Node) bool {
	dim, width := b.widestDim(n)
	if width <= 0 {
		return false
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	for i := n.Begin; i < n.End; i++ {
		v := b.t.Row(b.idx[i])[dim]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	mid := (lo + hi) / 2

	// Two-pointer partition of idx[Begin:End): points below mid go left.
	left, right := n.Begin, n.End-1
	for left <= right {
		for left <= right && b.t.Row(b.idx[left])[dim] < mid {
			left++
		}
		for left <= right && b.t.Row(b.idx[right])[dim] >= mid {
			right--
		}
		if left < right {
			b.idx[left], b.idx[right] = b.idx[right], b.idx[left]
		}
	}
	if left == n.Begin || left == n.End {
		return false
	}

	n.Left = b.node(n.Begin, left)
	n.Right = b.node(left, n.End)
	return true
}

// applyPermutation rewrites storage in tree order and records the
// old/new mapping. Reindexing an already indexed table composes the new
// permutation with the existing one so pre-index positions stay valid.
func (t *Table) applyPermutation(idx []int) {
	newData := t.alloc.AllocFloat64(len(t.data))
	newIDs := make([]int64, t.entries)
	oldFromNew := make([]int, t.entries)
	newFromOld := make([]int, t.entries)

	for p, src := range idx {
		copy(newData[p*t.attrs:(p+1)*t.attrs], t.Row(src))
		newIDs[p] = t.ids[src]
		old := src
		if t.oldFromNew != nil {
			old = t.oldFromNew[src]
		}
		oldFromNew[p] = old
		newFromOld[old] = p
	}

	t.alloc.Free(t.data)
	t.data = newData
	t.ids = newIDs
	t.oldFromNew = oldFromNew
	t.newFromOld = newFromOld
}
