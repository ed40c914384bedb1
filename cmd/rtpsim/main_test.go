package main

import (
	"context"
	"testing"

	"coinhype/game"
)

func TestSimulateMatchesSequential(t *testing.T) {
	r, err := game.NewRegistry(0.01, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	seeds := game.Seeds{Server: "server", Client: "client"}
	p := game.Params{"target": 2.0}

	want, err := r.Sample("limbo", seeds, p, 0, 1001)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	for _, workers := range []int{1, 3, 8} {
		got, err := simulate(context.Background(), r, "limbo", seeds, p, len(want), workers)
		if err != nil {
			t.Fatalf("simulate with %d workers failed: %v", workers, err)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%d workers: nonce %d = %v, want %v", workers, i, got[i], want[i])
			}
		}
	}

	if _, err := simulate(context.Background(), r, "blackjack", seeds, p, 10, 2); err == nil {
		t.Error("Expected unknown game to fail")
	}
}
