// Package kmeans refines each rank's coarse centroid with a distributed
// k-means iteration: every rank owns exactly one centroid and points
// migrate (logically) between centroids of ranks inside a bounded
// neighbor window. Sufficient statistics, not points, are exchanged.
package kmeans

import (
	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metric"
	"github.com/sagpant/mlpack/internal/metrics"
	"github.com/sagpant/mlpack/internal/table"
)

const defaultIterations = 10

// Refiner configures the refinement.
type Refiner struct {
	// Radius bounds how far (in ranks) a point may migrate from its
	// holder. Zero means the full group, matching the windowed
	// redistribution that follows. The radius restricts which centroids
	// local points may join; the sufficient-statistics exchange itself is
	// a group-wide all-gather regardless, since contributions outside a
	// receiver's window are zero and the collective keeps every rank in
	// lockstep.
	Radius int

	// Iterations is the number of update rounds; zero means 10.
	Iterations int
}

// Result is one rank's outcome of the refinement.
type Result struct {
	// Center is the refined centroid owned by the calling rank.
	Center []float64

	// TotalOwned is the number of points, group wide, assigned to the
	// calling rank's centroid; the redistribution target buffer is sized
	// by it.
	TotalOwned int

	// Assignments maps each local point (storage order) to the rank
	// whose centroid it finally belongs to.
	Assignments []int
}

// Refine runs the distributed update and returns the calling rank's
// refined centroid, its final ownership count and the per-point owner
// assignment. Every rank must call Refine with its own awarded centroid.
func (r *Refiner) Refine(g comm.Group, m metric.Metric, t *table.Table, center []float64) (*Result, error) {
	if len(center) != t.AttributeCount() {
		return nil, errors.Newf(errors.ErrorTypeValidation, "kmeans.refine",
			"centroid has %d attributes, table has %d", len(center), t.AttributeCount())
	}

	size := g.Size()
	radius := r.Radius
	if radius <= 0 || radius > size {
		radius = size
	}
	iterations := r.Iterations
	if iterations <= 0 {
		iterations = defaultIterations
	}

	attrs := t.AttributeCount()
	own := make([]float64, attrs)
	copy(own, center)

	for iter := 0; iter < iterations; iter++ {
		metrics.KMeansIterations.Inc()

		centers := gatherCenters(g, own)
		assign := nearestRanks(g.Rank(), size, radius, m, t, centers)

		// Exchange per-target partial sums and counts; each rank then
		// folds in every contribution aimed at its own centroid.
		sums, counts := localStats(t, assign, size, attrs)
		allStats := g.AllGather(encodeStats(sums, counts, attrs))

		total := 0.0
		acc := make([]float64, attrs)
		for _, payload := range allStats {
			c, s := statsFor(payload, g.Rank(), attrs)
			total += c
			for d := range acc {
				acc[d] += s[d]
			}
		}
		if total > 0 {
			for d := range own {
				own[d] = acc[d] / total
			}
		}
	}

	// One more exchange against the settled centers so every rank's
	// ownership count matches exactly what its neighbors will send.
	centers := gatherCenters(g, own)
	assign := nearestRanks(g.Rank(), size, radius, m, t, centers)
	_, counts := localStats(t, assign, size, attrs)
	allCounts := g.AllGather(encodeCounts(counts))

	totalOwned := 0
	for _, payload := range allCounts {
		totalOwned += int(comm.Int32At(payload, g.Rank()*4))
	}

	return &Result{Center: own, TotalOwned: totalOwned, Assignments: assign}, nil
}

func gatherCenters(g comm.Group, own []float64) [][]float64 {
	gathered := g.AllGather(comm.EncodeFloat64s(own))
	centers := make([][]float64, len(gathered))
	for r, payload := range gathered {
		centers[r] = comm.DecodeFloat64s(payload)
	}
	return centers
}

// nearestRanks assigns every local point to the window rank whose
// centroid is closest, ties to the lower rank.
func nearestRanks(rank, size, radius int, m metric.Metric, t *table.Table, centers [][]float64) []int {
	lo := rank - radius
	if lo < 0 {
		lo = 0
	}
	hi := rank + radius
	if hi > size-1 {
		hi = size - 1
	}

	assign := make([]int, t.EntryCount())
	for i := range assign {
		row := t.Row(i)
		best, bestDist := lo, m.DistanceSq(centers[lo], row)
		for r := lo + 1; r <= hi; r++ {
			if d := m.DistanceSq(centers[r], row); d < bestDist {
				best, bestDist = r, d
			}
		}
		assign[i] = best
	}
	return assign
}

func localStats(t *table.Table, assign []int, size, attrs int) ([]float64, []int) {
	sums := make([]float64, size*attrs)
	counts := make([]int, size)
	for i, target := range assign {
		row := t.Row(i)
		counts[target]++
		for d := 0; d < attrs; d++ {
			sums[target*attrs+d] += row[d]
		}
	}
	return sums, counts
}

// stats wire layout: per rank, count(float64) followed by the partial
// sum vector.
func encodeStats(sums []float64, counts []int, attrs int) []byte {
	size := len(counts)
	buf := make([]byte, 0, size*(attrs+1)*8)
	for r := 0; r < size; r++ {
		buf = comm.PutFloat64s(buf, []float64{float64(counts[r])})
		buf = comm.PutFloat64s(buf, sums[r*attrs:(r+1)*attrs])
	}
	return buf
}

func statsFor(payload []byte, rank, attrs int) (count float64, sum []float64) {
	stride := (attrs + 1) * 8
	var c [1]float64
	comm.Float64sAt(payload, rank*stride, 1, c[:])
	sum = make([]float64, attrs)
	comm.Float64sAt(payload, rank*stride+8, attrs, sum)
	return c[0], sum
}

func encodeCounts(counts []int) []byte {
	buf := make([]byte, 0, len(counts)*4)
	for _, c := range counts {
		buf = comm.PutInt32(buf, int32(c))
	}
	return buf
}
