// seed_demo credits a fixed set of demo wallets and gives them leaderboard
// PnL so a fresh database has something to show.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/db"
	"coinhype/settle"
)

func main() {
	config.LoadDotEnv()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	if err := db.InitPostgres(databaseURL); err != nil {
		log.Fatalf("Failed to init postgres: %v", err)
	}
	defer db.ClosePostgres()

	ctx := context.Background()
	ledger := db.Ledger{}

	// Test wallets with starting balance and PnL in minor units
	testWallets := []struct {
		addr    string
		balance int64
		pnl     int64
	}{
		{"0x1234567890123456789012345678901234567890", 1_000_000, 250_750},
		{"0xABCDEF0123456789ABCDEF0123456789ABCDEF01", 1_000_000, 185_500},
		{"0x9876543210987654321098765432109876543210", 500_000, 120_250},
		{"0xDEADBEEF00000000000000000000000DEADBEEF0", 500_000, 95_000},
		{"0xCAFEBABE00000000000000000000000CAFEBABE0", 250_000, 67_500},
		{"0xFEEDFACE00000000000000000000000FEEDFACE0", 250_000, 45_250},
		{"0xBAADF00D00000000000000000000000BAADF00D0", 100_000, 32_000},
		{"0x8BADF00D00000000000000000000000000000000", 100_000, 18_750},
		{"0xDEFEC8ED00000000000000000000000000000000", 50_000, -5_500},
		{"0xB16B00B500000000000000000000000000000000", 50_000, -25_000},
	}

	fmt.Println("Seeding demo wallets...")

	for _, w := range testWallets {
		addr, err := crypto.NormalizeAddress(w.addr)
		if err != nil {
			log.Printf("Skipping %s: %v", w.addr, err)
			continue
		}

		balance, err := ledger.Credit(ctx, addr, w.balance, "seed", "seed_demo")
		switch {
		case errors.Is(err, settle.ErrDuplicateRequest):
			balance, _ = ledger.Balance(ctx, addr)
			fmt.Printf("  %s... already seeded, balance %d\n", addr[:10], balance)
		case err != nil:
			log.Printf("Failed to credit %s: %v", addr[:10], err)
			continue
		default:
			fmt.Printf("  %s... balance %d\n", addr[:10], balance)
		}

		// Reset PnL so reruns stay deterministic
		db.PostgresPool.Exec(ctx, "DELETE FROM wallet_pnl WHERE wallet_address = $1", addr)
		if w.pnl >= 0 {
			err = db.AddWalletPnL(ctx, addr, w.pnl)
		} else {
			err = db.SubtractWalletPnL(ctx, addr, -w.pnl)
		}
		if err != nil {
			log.Printf("Failed to set PnL for %s: %v", addr[:10], err)
		}
	}

	fmt.Println("\nDone! Testing leaderboard...")

	records, err := db.GetWalletPnLLeaderboard(ctx, config.LeaderboardSize)
	if err != nil {
		log.Fatalf("Failed to get leaderboard: %v", err)
	}

	fmt.Printf("\nLeaderboard (%d entries):\n", len(records))
	for _, r := range records {
		fmt.Printf("  #%d %s... %d\n", r.Rank, r.WalletAddress[:10], r.Amount)
	}
}
