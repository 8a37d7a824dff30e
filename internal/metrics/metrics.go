package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the distributed index construction protocol.
var (
	// PhaseDuration tracks wall time per index-construction phase.
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlpack_index_phase_duration_seconds",
			Help:    "Duration of distributed index construction phases",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"phase"},
	)

	// PointsRedistributed counts points moved between ranks, by direction.
	PointsRedistributed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlpack_points_redistributed_total",
			Help: "Total points moved between ranks during redistribution",
		},
		[]string{"direction"},
	)

	// ContributionBytes counts contribution payload bytes on the wire.
	ContributionBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlpack_contribution_bytes_total",
			Help: "Contribution payload bytes before and after compression",
		},
		[]string{"stage"},
	)

	// AuctionRounds counts bidding rounds until a feasible assignment.
	AuctionRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlpack_auction_rounds_total",
			Help: "Total auction bidding rounds across assignments",
		},
	)

	// KMeansIterations counts distributed k-means refinement iterations.
	KMeansIterations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlpack_kmeans_iterations_total",
			Help: "Total distributed k-means refinement iterations",
		},
	)

	// CollectiveOps counts collective operations by kind.
	CollectiveOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlpack_collective_ops_total",
			Help: "Total collective operations issued by this process",
		},
		[]string{"op"},
	)

	// ReplenishedLeaves counts synthetic coarse leaves created when the
	// sampled tree under-produces.
	ReplenishedLeaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlpack_replenished_leaves_total",
			Help: "Synthetic coarse leaf nodes created during replenishment",
		},
	)

	// ArenaAllocatedBytes tracks bytes handed out by the arena allocator.
	ArenaAllocatedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mlpack_arena_allocated_bytes_total",
			Help: "Total bytes allocated from the mmap arena",
		},
	)
)
