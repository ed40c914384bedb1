package db

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
)

// setupPostgres connects to DATABASE_URL or skips the test
func setupPostgres(t *testing.T) context.Context {
	t.Helper()
	_ = godotenv.Load("../.env")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	if err := InitPostgres(databaseURL); err != nil {
		t.Fatalf("Failed to init postgres: %v", err)
	}
	t.Cleanup(ClosePostgres)
	return context.Background()
}

func TestWalletPnL(t *testing.T) {
	ctx := setupPostgres(t)
	testWallet := "0xtestwallet123456789012345678901234567890"

	// Cleanup before test
	_, _ = PostgresPool.Exec(ctx, "DELETE FROM wallet_pnl WHERE wallet_address = $1", testWallet)

	t.Run("SubtractWalletPnL_NewWallet", func(t *testing.T) {
		if err := SubtractWalletPnL(ctx, testWallet, 10); err != nil {
			t.Fatalf("SubtractWalletPnL failed: %v", err)
		}

		record, err := GetWalletPnLRank(ctx, testWallet)
		if err != nil {
			t.Fatalf("GetWalletPnLRank failed: %v", err)
		}
		if record == nil {
			t.Fatal("Expected record, got nil")
		}
		if record.Amount != -10 {
			t.Errorf("Expected amount -10, got %d", record.Amount)
		}
	})

	t.Run("AddWalletPnL_ExistingWallet", func(t *testing.T) {
		if err := AddWalletPnL(ctx, testWallet, 25); err != nil {
			t.Fatalf("AddWalletPnL failed: %v", err)
		}

		// -10 + 25 = 15
		record, err := GetWalletPnLRank(ctx, testWallet)
		if err != nil {
			t.Fatalf("GetWalletPnLRank failed: %v", err)
		}
		if record.Amount != 15 {
			t.Errorf("Expected amount 15, got %d", record.Amount)
		}
	})

	t.Run("GetWalletPnLLeaderboard", func(t *testing.T) {
		testWallets := []struct {
			addr   string
			amount int64
		}{
			{"0xtestleader1_1111111111111111111111111111", 100},
			{"0xtestleader2_2222222222222222222222222222", 50},
			{"0xtestleader3_3333333333333333333333333333", 25},
		}

		for _, w := range testWallets {
			_, _ = PostgresPool.Exec(ctx, "DELETE FROM wallet_pnl WHERE wallet_address = $1", w.addr)
			_, _ = PostgresPool.Exec(ctx, "INSERT INTO wallet_pnl (wallet_address, amount) VALUES ($1, $2)", w.addr, w.amount)
		}

		records, err := GetWalletPnLLeaderboard(ctx, 10)
		if err != nil {
			t.Fatalf("GetWalletPnLLeaderboard failed: %v", err)
		}
		if len(records) < 3 {
			t.Fatalf("Expected at least 3 records, got %d", len(records))
		}
		for i := 1; i < len(records); i++ {
			if records[i-1].Amount < records[i].Amount {
				t.Error("Leaderboard not sorted DESC by amount")
			}
			if records[i].Rank != records[i-1].Rank+1 {
				t.Errorf("Expected consecutive ranks, got %d then %d", records[i-1].Rank, records[i].Rank)
			}
		}

		for _, w := range testWallets {
			PostgresPool.Exec(ctx, "DELETE FROM wallet_pnl WHERE wallet_address = $1", w.addr)
		}
	})

	PostgresPool.Exec(ctx, "DELETE FROM wallet_pnl WHERE wallet_address = $1", testWallet)
}
