package dtable

import (
	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metrics"
	"github.com/sagpant/mlpack/internal/table"
)

// redistribute moves every local point to the rank that now owns it and
// swaps in the rebuilt shard.
//
// Sends are non-blocking in both directions before any receive runs.
// Receives land in strict left, self, right order at contiguous
// increasing offsets of the new buffer; each one advances the write
// cursor by exactly its contribution's point count. Envelope direction
// is the direction of travel, so a receive from the left neighbor i
// steps away matches {DirRight, i} and one from the right matches
// {DirLeft, i}. The closing barrier keeps every rank's send buffers
// alive until the whole group has drained its receives.
func (dt *DistributedTable) redistribute(g comm.Group, assignments []int, totalOwned int) error {
	rank, size := g.Rank(), g.Size()
	radius := dt.radius
	if radius <= 0 || radius > size {
		radius = size
	}
	leftCount := min(rank, radius)
	rightCount := min(size-rank-1, radius)
	attrs := dt.local.AttributeCount()

	requests := make([]comm.Request, 0, leftCount+rightCount)
	for i := 1; i <= leftCount; i++ {
		c := BuildContribution(dt.local, assignments, rank, rank-i)
		metrics.PointsRedistributed.WithLabelValues("left").Add(float64(c.Entries))
		requests = append(requests, g.ISend(rank-i, comm.Envelope{
			Direction: comm.DirLeft,
			Offset:    i,
			Payload:   c.Encode(),
		}))
	}
	for i := 1; i <= rightCount; i++ {
		c := BuildContribution(dt.local, assignments, rank, rank+i)
		metrics.PointsRedistributed.WithLabelValues("right").Add(float64(c.Entries))
		requests = append(requests, g.ISend(rank+i, comm.Envelope{
			Direction: comm.DirRight,
			Offset:    i,
			Payload:   c.Encode(),
		}))
	}

	newData := dt.alloc.AllocFloat64(totalOwned * attrs)
	newIDs := make([]int64, totalOwned)
	cursor := 0

	for i := 1; i <= leftCount; i++ {
		payload, err := g.Recv(rank-i, comm.DirRight, i)
		if err != nil {
			return err
		}
		c, err := DecodeContribution(payload, rank, attrs, newData[cursor*attrs:], newIDs[cursor:])
		if err != nil {
			return err
		}
		cursor += c.Entries
	}

	retained, err := extractSelf(dt.local, assignments, rank, newData[cursor*attrs:], newIDs[cursor:])
	if err != nil {
		return err
	}
	metrics.PointsRedistributed.WithLabelValues("self").Add(float64(retained))
	cursor += retained

	for i := 1; i <= rightCount; i++ {
		payload, err := g.Recv(rank+i, comm.DirLeft, i)
		if err != nil {
			return err
		}
		c, err := DecodeContribution(payload, rank, attrs, newData[cursor*attrs:], newIDs[cursor:])
		if err != nil {
			return err
		}
		cursor += c.Entries
	}

	if cursor != totalOwned {
		return errors.Newf(errors.ErrorTypeComputation, "dtable.redistribute",
			"received %d points but refinement promised %d", cursor, totalOwned)
	}

	if err := comm.WaitAll(requests); err != nil {
		return err
	}
	g.Barrier()

	newTable, err := table.FromBuffer(dt.alloc, attrs, newData, newIDs)
	if err != nil {
		return err
	}
	dt.local.Release()
	dt.local = newTable
	return nil
}
