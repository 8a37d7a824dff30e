// dtable-sim stands up an in-process SPMD group, hands every rank a
// synthetic Gaussian shard skewed toward its own cluster, and runs the
// full distributed index construction. It reports per-rank ownership
// purity so protocol or clustering regressions are visible from the
// command line.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/dtable"
	"github.com/sagpant/mlpack/internal/logging"
	"github.com/sagpant/mlpack/internal/memory"
	"github.com/sagpant/mlpack/internal/metric"
	"github.com/sagpant/mlpack/internal/table"
)

func main() {
	// .env is optional; the environment wins.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("mlpack", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				logger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving prometheus metrics")
	}

	centers := clusterCenters(cfg.GroupSize, cfg.Dimensions, cfg.ClusterSeparation)

	var mu sync.Mutex
	purities := make([]float64, cfg.GroupSize)
	counts := make([]int, cfg.GroupSize)

	err := comm.Launch(cfg.GroupSize, func(g comm.Group) error {
		alloc, cleanup, err := rankAllocator(&cfg, g.Rank())
		if err != nil {
			return err
		}
		defer cleanup()

		shard := generateShard(&cfg, centers, g.Rank())
		dt := dtable.New(alloc, logger)
		defer dt.Close()

		if err := dt.InitFromPoints(shard, cfg.Dimensions, g); err != nil {
			return err
		}
		if err := dt.IndexData(metric.Euclidean{}, g, cfg.LeafSize, cfg.SampleProb); err != nil {
			return err
		}

		purity := ownershipPurity(dt.LocalTable(), centers)
		mu.Lock()
		purities[g.Rank()] = purity
		counts[g.Rank()] = dt.EntryCount()
		mu.Unlock()
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	total := 0
	for rank, n := range counts {
		total += n
		logger.Info().
			Int("rank", rank).
			Int("points", n).
			Float64("purity", purities[rank]).
			Msg("rank ownership")
	}
	logger.Info().
		Int("total_points", total).
		Int("expected", cfg.GroupSize*cfg.PointsPerRank).
		Msg("simulation complete")

	if total != cfg.GroupSize*cfg.PointsPerRank {
		logger.Fatal().Msg("redistribution lost or duplicated points")
	}
}

// rankAllocator picks the configured allocation discipline for one rank.
// In a real deployment each process maps its own arena; the simulation
// mirrors that with one arena file per rank.
func rankAllocator(cfg *Config, rank int) (memory.Allocator, func(), error) {
	if cfg.ArenaPath == "" {
		return memory.NewHeapAllocator(), func() {}, nil
	}
	path := fmt.Sprintf("%s.rank-%d", cfg.ArenaPath, rank)
	arena, err := memory.NewArena(path, cfg.ArenaSize)
	if err != nil {
		return nil, nil, err
	}
	return arena, func() {
		_ = arena.Close()
		_ = os.Remove(path)
	}, nil
}

// clusterCenters lays out one well-separated center per rank.
func clusterCenters(groups, dims int, separation float64) [][]float64 {
	centers := make([][]float64, groups)
	for c := range centers {
		centers[c] = make([]float64, dims)
		for d := range centers[c] {
			centers[c][d] = float64(c) * separation
		}
	}
	return centers
}

// generateShard draws a rank's points: 85% from its own cluster, the
// rest spread over the others so redistribution has work to do.
func generateShard(cfg *Config, centers [][]float64, rank int) []float64 {
	rng := rand.New(rand.NewSource(int64(rank)*7919 + 1))
	shard := make([]float64, 0, cfg.PointsPerRank*cfg.Dimensions)
	for i := 0; i < cfg.PointsPerRank; i++ {
		cluster := rank
		if cfg.GroupSize > 1 && rng.Float64() > 0.85 {
			cluster = rng.Intn(cfg.GroupSize)
		}
		for d := 0; d < cfg.Dimensions; d++ {
			shard = append(shard, centers[cluster][d]+rng.NormFloat64()*cfg.ClusterSpread)
		}
	}
	return shard
}

// ownershipPurity is the fraction of a rank's final points belonging to
// its single most common true cluster.
func ownershipPurity(t *table.Table, centers [][]float64) float64 {
	if t.EntryCount() == 0 {
		return 0
	}
	m := metric.Euclidean{}
	tally := make([]int, len(centers))
	for pos := 0; pos < t.EntryCount(); pos++ {
		row := t.Row(pos)
		best, bestDist := 0, m.DistanceSq(centers[0], row)
		for c := 1; c < len(centers); c++ {
			if d := m.DistanceSq(centers[c], row); d < bestDist {
				best, bestDist = c, d
			}
		}
		tally[best]++
	}
	top := 0
	for _, n := range tally {
		if n > top {
			top = n
		}
	}
	return float64(top) / float64(t.EntryCount())
}
