// Command slabd wires the allocator, the rebalance coordinator and a
// reference item store together behind a metrics endpoint, plus a
// demo workload and automove policy loop so the whole system has
// something to do. It is a harness for exercising the library, not a
// memcached replacement.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
	"golang.org/x/sync/errgroup"

	"github.com/hearthcache/slab/internal/itemstore"
	"github.com/hearthcache/slab/internal/obs"
	"github.com/hearthcache/slab/internal/rebalance"
	"github.com/hearthcache/slab/internal/slabs"
)

func main() {
	log := obs.Default("slabd")

	cfg := slabs.DefaultConfig()
	bulk := 1
	slabs.ApplyEnvOverrides(&bulk)
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", obs.Err(err))
	}

	alloc, err := slabs.New(cfg, log.With("slabs"))
	if err != nil {
		log.Fatal("failed to build allocator", obs.Err(err))
	}

	st := itemstore.New(nil)
	coord := rebalance.New(alloc, st, bulk, log.With("rebalance"))

	prometheus.MustRegister(slabs.NewCollector(alloc))
	prometheus.MustRegister(rebalance.NewCollector(coord))

	automoveLimiter, err := newAutomoveLimiter(cfg.SlabAutomove)
	if err != nil {
		log.Fatal("failed to build automove rate limiter", obs.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":9180", Handler: mux}

	g.Go(func() error {
		log.Info("metrics server listening", obs.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error { return coord.Run(gctx) })

	g.Go(func() error { return demoWorkload(gctx, alloc, st, log) })

	if cfg.SlabAutomove > 0 {
		g.Go(func() error { return automovePolicy(gctx, alloc, coord, automoveLimiter, log) })
	}

	<-gctx.Done()
	log.Info("shutdown signal received")

	shutdown := obs.NewShutdown(10*time.Second, log.With("shutdown"))
	shutdown.Register(func() error { return srv.Shutdown(context.Background()) })
	shutdown.Register(func() error { coord.Stop(); return nil })
	if err := shutdown.Run(context.Background()); err != nil {
		log.Error("shutdown did not complete cleanly", obs.Err(err))
	}

	if err := g.Wait(); err != nil {
		log.Error("service exited with error", obs.Err(err))
		os.Exit(1)
	}
}

// newAutomoveLimiter throttles how often the automove policy may call
// Reassign, scaled by the configured aggressiveness level (1-3).
func newAutomoveLimiter(level int) (*limiter.TokenBucket, error) {
	if level <= 0 {
		level = 1
	}
	return limiter.NewTokenBucket(
		limiter.Config{
			Rate:     int64(level),
			Duration: time.Second,
			Burst:    int64(level * 2),
		},
		store.NewMemoryStore(time.Minute),
	)
}

// demoWorkload inserts a steady trickle of randomly sized items so the
// size classes have live pages for the automove policy and rebalance
// scans to act on.
func demoWorkload(ctx context.Context, alloc *slabs.Allocator, st *itemstore.Store, log *obs.Logger) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			size := int64(64 + rand.Intn(8192))
			id := alloc.ClassIDFor(size)
			if id == 0 {
				continue
			}
			chunk, _, err := alloc.Alloc(size, id, 0)
			if err != nil {
				continue
			}
			key := uuid.NewString()
			st.Insert(key, chunk, time.Minute)
			log.Debug("inserted demo item", obs.String("key", key), obs.Int("class", id))
		}
	}
}

// automovePolicy periodically asks the allocator to auto-pick a
// donor class for whichever class looks fullest, throttled by a token
// bucket so it never fires faster than the configured aggressiveness
// allows (§4.4's slab_automove, simplified to a fixed-interval poll).
func automovePolicy(ctx context.Context, alloc *slabs.Allocator, coord *rebalance.Coordinator, rl *limiter.TokenBucket, log *obs.Logger) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !rl.Allow("automove") {
				continue
			}
			dst := pickFullestClass(alloc)
			if dst == 0 {
				continue
			}
			if err := coord.Reassign(-1, dst); err != nil {
				log.Debug("automove skipped", obs.Err(err))
			}
		}
	}
}

func pickFullestClass(alloc *slabs.Allocator) int {
	best, bestRatio := 0, 0.0
	for id := 1; id <= alloc.PowerLargest(); id++ {
		avail, err := alloc.AvailableChunks(id)
		if err != nil || avail.Total == 0 {
			continue
		}
		used := avail.Total - avail.Free
		ratio := float64(used) / float64(avail.Total)
		if ratio > bestRatio {
			best, bestRatio = id, ratio
		}
	}
	return best
}
