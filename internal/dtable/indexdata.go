package dtable

import (
	"math"
	"math/rand"
	"time"

	"github.com/sagpant/mlpack/internal/auction"
	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/kmeans"
	"github.com/sagpant/mlpack/internal/memory"
	"github.com/sagpant/mlpack/internal/metric"
	"github.com/sagpant/mlpack/internal/metrics"
	"github.com/sagpant/mlpack/internal/table"
)

// IndexData runs the full construction protocol: sample a coarse tree,
// auction its leaves to ranks, refine the awarded centroids, move every
// point to its owning rank, then index the balanced shards locally and
// assemble the global tree. All ranks must call IndexData with the same
// arguments; the call is collective from start to finish.
func (dt *DistributedTable) IndexData(m metric.Metric, g comm.Group, leafSize int, sampleProbability float64) error {
	if sampleProbability <= 0 || sampleProbability > 1 {
		return errors.Newf(errors.ErrorTypeValidation, "dtable.index",
			"sample probability %g outside (0, 1]", sampleProbability)
	}
	start := time.Now()

	leaves, err := dt.buildCoarseLeaves(m, g, sampleProbability)
	if err != nil {
		return err
	}

	awarded, err := dt.takeLeafOwnership(m, g, leaves)
	if err != nil {
		return err
	}

	phase := time.Now()
	refiner := &kmeans.Refiner{Radius: dt.radius}
	refined, err := refiner.Refine(g, m, dt.local, leaves[awarded].Bound.Center)
	if err != nil {
		return err
	}
	metrics.PhaseDuration.WithLabelValues("kmeans").Observe(time.Since(phase).Seconds())

	phase = time.Now()
	if err := dt.redistribute(g, refined.Assignments, refined.TotalOwned); err != nil {
		return err
	}
	metrics.PhaseDuration.WithLabelValues("redistribute").Observe(time.Since(phase).Seconds())

	// Indexing the balanced shard needs no further coordination.
	phase = time.Now()
	if err := dt.local.IndexData(m, leafSize); err != nil {
		return err
	}
	metrics.PhaseDuration.WithLabelValues("local_index").Observe(time.Since(phase).Seconds())

	if err := dt.assembleGlobalTable(m, g); err != nil {
		return err
	}

	// Counts changed during redistribution.
	dt.gatherCounts(g)

	if dt.rank == 0 {
		dt.log.Info().
			Dur("elapsed", time.Since(start)).
			Int("leaf_size", leafSize).
			Float64("sample_probability", sampleProbability).
			Msg("distributed tree built")
	}
	return nil
}

// buildCoarseLeaves samples local points, gathers the samples at rank 0,
// builds the coarse tree there with one requested leaf per rank,
// replenishes any shortfall and broadcasts the final leaf list.
func (dt *DistributedTable) buildCoarseLeaves(m metric.Metric, g comm.Group, sampleProbability float64) ([]*table.Node, error) {
	defer func(begin time.Time) {
		metrics.PhaseDuration.WithLabelValues("sample").Observe(time.Since(begin).Seconds())
	}(time.Now())

	attrs := dt.local.AttributeCount()
	sampled := selectSubset(dt.local.EntryCount(), sampleProbability)
	sampleBuf := make([]float64, 0, len(sampled)*attrs)
	for _, pos := range sampled {
		sampleBuf = append(sampleBuf, dt.local.Row(pos)...)
	}

	// Count handshake first so the coordinator can size and validate the
	// variable-length gather that follows.
	counts := g.Gather(0, comm.EncodeInt32(int32(len(sampled))))
	buffers := g.Gather(0, comm.EncodeFloat64s(sampleBuf))

	// The coordinator broadcasts an empty frame on failure so the group
	// unblocks and every rank reports the same error instead of hanging.
	var frame []byte
	var rootErr error
	if dt.rank == 0 {
		var leaves []*table.Node
		leaves, rootErr = dt.coarseLeavesAtRoot(m, counts, buffers, attrs)
		if rootErr != nil {
			dt.log.Error().Err(rootErr).Msg("coarse tree construction failed")
		} else {
			frame = encodeLeaves(leaves, attrs)
		}
	}
	frame = g.Broadcast(0, frame)
	if rootErr != nil {
		return nil, rootErr
	}
	if len(frame) == 0 {
		return nil, errors.New(errors.ErrorTypeProtocol, "dtable.sample", "coordinator failed to build the coarse tree")
	}
	return decodeLeaves(frame, attrs)
}

// coarseLeavesAtRoot concatenates the gathered samples, indexes them
// with as many leaves as there are ranks, and replenishes synthetic
// leaves when natural clustering under-produces.
func (dt *DistributedTable) coarseLeavesAtRoot(m metric.Metric, counts, buffers [][]byte, attrs int) ([]*table.Node, error) {
	total := 0
	for _, payload := range counts {
		total += int(comm.DecodeInt32(payload))
	}
	values := make([]float64, 0, total*attrs)
	for r, payload := range buffers {
		want := int(comm.DecodeInt32(counts[r])) * attrs * 8
		if len(payload) != want {
			return nil, errors.Newf(errors.ErrorTypeProtocol, "dtable.sample",
				"rank %d announced %d bytes of samples but sent %d", r, want, len(payload))
		}
		values = append(values, comm.DecodeFloat64s(payload)...)
	}

	// The sampled table is transient; it always lives on the heap
	// regardless of where the shards live.
	sampledTable, err := table.FromPoints(memory.NewHeapAllocator(), attrs, values, 0)
	if err != nil {
		return nil, err
	}
	if err := sampledTable.IndexData(m, 1, dt.size); err != nil {
		return nil, err
	}

	leaves := table.LeafNodesOf(sampledTable.Tree())
	if len(leaves) < dt.size {
		leaves = replenishLeaves(leaves, dt.size)
	}
	return leaves, nil
}

// replenishLeaves synthesizes leaves until want exist: each new centroid
// averages a random subset of existing leaf centroids.
func replenishLeaves(leaves []*table.Node, want int) []*table.Node {
	attrs := leaves[0].Bound.Dim()
	numSamples := rand.Intn(len(leaves))
	if numSamples < 1 {
		numSamples = 1
	}
	for len(leaves) < want {
		bound := metric.NewBallBound(attrs)
		for s := 0; s < numSamples; s++ {
			pick := leaves[rand.Intn(len(leaves))].Bound.Center
			for d := range bound.Center {
				bound.Center[d] += pick[d]
			}
		}
		for d := range bound.Center {
			bound.Center[d] /= float64(numSamples)
		}
		leaves = append(leaves, &table.Node{Bound: bound})
		metrics.ReplenishedLeaves.Inc()
	}
	return leaves
}

// takeLeafOwnership counts local affinity for every leaf and runs the
// auction; the returned index is the leaf this rank now owns.
func (dt *DistributedTable) takeLeafOwnership(m metric.Metric, g comm.Group, leaves []*table.Node) (int, error) {
	defer func(begin time.Time) {
		metrics.PhaseDuration.WithLabelValues("auction").Observe(time.Since(begin).Seconds())
	}(time.Now())

	affinity := make([]float64, len(leaves))
	for pos := 0; pos < dt.local.EntryCount(); pos++ {
		row := dt.local.Row(pos)
		best, bestDist := -1, math.Inf(1)
		for j, leaf := range leaves {
			if d := leaf.Bound.MidDistanceSq(m, row); d < bestDist {
				best, bestDist = j, d
			}
		}
		affinity[best]++
	}

	return auction.Assign(g, affinity, 1.0/float64(dt.size))
}

// assembleGlobalTable all-gathers every rank's local tree root centroid
// and indexes the identical shallow global table on every rank.
func (dt *DistributedTable) assembleGlobalTable(m metric.Metric, g comm.Group) error {
	defer func(begin time.Time) {
		metrics.PhaseDuration.WithLabelValues("global_table").Observe(time.Since(begin).Seconds())
	}(time.Now())

	attrs := dt.local.AttributeCount()
	gathered := g.AllGather(comm.EncodeFloat64s(dt.local.Tree().Bound.Center))
	values := make([]float64, 0, dt.size*attrs)
	for _, payload := range gathered {
		values = append(values, comm.DecodeFloat64s(payload)...)
	}

	if dt.global != nil {
		dt.global.Release()
	}
	global, err := table.FromPoints(dt.alloc, attrs, values, dt.rank)
	if err != nil {
		return err
	}
	if err := global.IndexData(m, 1); err != nil {
		return err
	}
	dt.global = global
	return nil
}

// selectSubset partially shuffles [0, n) and keeps the first
// max(floor(p*n), 1) indices, so every non-empty shard contributes at
// least one sample.
func selectSubset(n int, p float64) []int {
	if n == 0 {
		return nil
	}
	k := int(math.Floor(p * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rand.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// Coarse leaf wire layout: count, then per leaf begin, end, radius and
// centroid.
func encodeLeaves(leaves []*table.Node, attrs int) []byte {
	buf := comm.PutInt32(nil, int32(len(leaves)))
	for _, leaf := range leaves {
		buf = comm.PutInt32(buf, int32(leaf.Begin))
		buf = comm.PutInt32(buf, int32(leaf.End))
		buf = comm.PutFloat64s(buf, []float64{leaf.Bound.Radius})
		buf = comm.PutFloat64s(buf, leaf.Bound.Center)
	}
	return buf
}

func decodeLeaves(frame []byte, attrs int) ([]*table.Node, error) {
	if len(frame) < 4 {
		return nil, errors.New(errors.ErrorTypeProtocol, "dtable.leaves", "leaf broadcast too short")
	}
	count := int(comm.Int32At(frame, 0))
	stride := 4 + 4 + 8 + attrs*8
	if len(frame) != 4+count*stride {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "dtable.leaves",
			"leaf broadcast is %d bytes, %d leaves need %d", len(frame), count, 4+count*stride)
	}
	leaves := make([]*table.Node, count)
	for i := 0; i < count; i++ {
		off := 4 + i*stride
		bound := metric.NewBallBound(attrs)
		var radius [1]float64
		comm.Float64sAt(frame, off+8, 1, radius[:])
		bound.Radius = radius[0]
		comm.Float64sAt(frame, off+16, attrs, bound.Center)
		leaves[i] = &table.Node{
			Begin: int(comm.Int32At(frame, off)),
			End:   int(comm.Int32At(frame, off+4)),
			Bound: bound,
		}
	}
	return leaves, nil
}
