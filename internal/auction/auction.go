// Package auction assigns each rank of a process group to one coarse
// leaf node, maximizing the number of points ranks already hold for
// their awarded leaves so redistribution moves as little data as
// possible.
//
// The bidding rule is a synchronous forward auction: every unassigned
// rank bids on its best-value item with the classic increment
// (best minus second best plus epsilon), rounds are resolved identically
// on every rank from an all-gather of the bids, and epsilon equals the
// caller's minimum price so the auction terminates with a feasible
// one-to-one assignment whenever there are at least as many items as
// ranks.
package auction

import (
	"math"

	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metrics"
)

// bid is one rank's offer for one round: the item it wants and the price
// it is willing to set. Item is -1 when the rank is already assigned.
type bid struct {
	item  int32
	price float64
}

const bidWireSize = 12

func encodeBid(b bid) []byte {
	buf := comm.PutInt32(make([]byte, 0, bidWireSize), b.item)
	return comm.PutFloat64s(buf, []float64{b.price})
}

func decodeBid(payload []byte) bid {
	var price [1]float64
	comm.Float64sAt(payload, 4, 1, price[:])
	return bid{item: comm.Int32At(payload, 0), price: price[0]}
}

// Assign runs the auction and returns the item index awarded to the
// calling rank. affinity[j] is the caller's value for item j, here the
// count of its local points nearest to leaf j. minPrice is the epsilon
// and the floor any awarded item's price rises above.
func Assign(g comm.Group, affinity []float64, minPrice float64) (int, error) {
	size := g.Size()
	if size == 1 {
		return 0, nil
	}
	if len(affinity) < size {
		return -1, errors.Newf(errors.ErrorTypeValidation, "auction.assign",
			"%d items cannot cover %d ranks", len(affinity), size)
	}
	if minPrice <= 0 {
		return -1, errors.New(errors.ErrorTypeValidation, "auction.assign", "minimum price must be positive")
	}

	// Replicated state: every rank applies the same resolution to the
	// same gathered bids, so prices and assignments never diverge.
	prices := make([]float64, len(affinity))
	owner := make([]int, len(affinity)) // item -> rank, -1 when unowned
	assigned := make([]int, size)       // rank -> item, -1 when unassigned
	for j := range owner {
		owner[j] = -1
	}
	for r := range assigned {
		assigned[r] = -1
	}

	for {
		metrics.AuctionRounds.Inc()

		my := bid{item: -1}
		if assigned[g.Rank()] < 0 {
			my = nextBid(affinity, prices, minPrice)
		}
		gathered := g.AllGather(encodeBid(my))

		// Resolve item by item: highest price wins, ties to the lowest
		// rank. The loser previously holding the item re-enters the pool.
		for j := range prices {
			win, winPrice := -1, math.Inf(-1)
			for r, payload := range gathered {
				b := decodeBid(payload)
				if int(b.item) == j && b.price > winPrice {
					win, winPrice = r, b.price
				}
			}
			if win < 0 {
				continue
			}
			if prev := owner[j]; prev >= 0 {
				assigned[prev] = -1
			}
			if old := assigned[win]; old >= 0 {
				owner[old] = -1
			}
			owner[j] = win
			assigned[win] = j
			prices[j] = winPrice
		}

		done := true
		for _, item := range assigned {
			if item < 0 {
				done = false
				break
			}
		}
		if done {
			return assigned[g.Rank()], nil
		}
	}
}

// nextBid picks the caller's best-value item and prices it one epsilon
// above indifference with the second best.
func nextBid(affinity, prices []float64, eps float64) bid {
	best := -1
	bestVal, secondVal := math.Inf(-1), math.Inf(-1)
	for j := range affinity {
		v := affinity[j] - prices[j]
		if v > bestVal {
			best, bestVal, secondVal = j, v, bestVal
		} else if v > secondVal {
			secondVal = v
		}
	}
	return bid{item: int32(best), price: prices[best] + (bestVal - secondVal) + eps}
}
