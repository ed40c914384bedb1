// rtpsim plays a game over many nonces and reports the observed return to
// player next to the configured house edge.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"time"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/game"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func main() {
	name := flag.String("game", "dice", "game to simulate")
	rounds := flag.Int("rounds", 1_000_000, "number of rounds")
	workers := flag.Int("workers", runtime.NumCPU(), "parallel workers")
	rawParams := flag.String("params", `{"target":50,"condition":"over"}`, "game params as JSON")
	edge := flag.Float64("edge", config.DefaultHouseEdge, "house edge")
	tablesPath := flag.String("tables", "", "payout tables yaml (default: embedded)")
	flag.Parse()

	if *rounds < 1 || *workers < 1 {
		log.Fatal("❌ rounds and workers must be positive")
	}

	var params game.Params
	if err := json.Unmarshal([]byte(*rawParams), &params); err != nil {
		log.Fatalf("❌ Invalid params: %v", err)
	}

	var tables *game.Tables
	if *tablesPath != "" {
		var err error
		if tables, err = game.LoadTables(*tablesPath); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	registry, err := game.NewRegistry(*edge, tables)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	serverSeed, _, err := crypto.GenerateServerSeed()
	if err != nil {
		log.Fatalf("❌ Failed to generate server seed: %v", err)
	}
	clientSeed, err := crypto.GenerateClientSeed()
	if err != nil {
		log.Fatalf("❌ Failed to generate client seed: %v", err)
	}
	seeds := game.Seeds{Server: serverSeed, Client: clientSeed}

	start := time.Now()
	multipliers, err := simulate(context.Background(), registry, *name, seeds, params, *rounds, *workers)
	if err != nil {
		log.Fatalf("❌ Simulation failed: %v", err)
	}
	report(*name, multipliers, *edge, time.Since(start))
}

// simulate splits the nonce range into one contiguous chunk per worker
func simulate(ctx context.Context, r *game.Registry, name string, seeds game.Seeds, p game.Params, rounds, workers int) ([]float64, error) {
	out := make([]float64, rounds)
	chunk := (rounds + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < rounds; lo += chunk {
		lo, hi := lo, min(lo+chunk, rounds)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := r.Sample(name, seeds, p, uint64(lo), hi-lo)
			if err != nil {
				return err
			}
			copy(out[lo:hi], m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func report(name string, m []float64, edge float64, took time.Duration) {
	mean, std := stat.MeanStdDev(m, nil)
	stderr := std / math.Sqrt(float64(len(m)))

	wins := 0
	for _, v := range m {
		if v > 0 {
			wins++
		}
	}

	sorted := append([]float64(nil), m...)
	sort.Float64s(sorted)

	fmt.Printf("🎲 %s: %d rounds in %s\n", name, len(m), took.Round(time.Millisecond))
	fmt.Printf("   RTP        %.4f%% ± %.4f%% (expected %.2f%%)\n", mean*100, 1.96*stderr*100, (1-edge)*100)
	fmt.Printf("   stddev     %.4f\n", std)
	fmt.Printf("   hit rate   %.4f%%\n", float64(wins)/float64(len(m))*100)
	fmt.Printf("   median     %.4fx\n", stat.Quantile(0.5, stat.Empirical, sorted, nil))
	fmt.Printf("   p99        %.4fx\n", stat.Quantile(0.99, stat.Empirical, sorted, nil))
	fmt.Printf("   max        %.4fx\n", floats.Max(m))
}
