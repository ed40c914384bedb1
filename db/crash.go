package db

import (
	"context"
	"log"

	"coinhype/state"
)

// CrashStore persists multiplayer crash rounds: finished rounds and bet
// rows in Postgres, live bets in the round's Redis hash, and wallet PnL.
type CrashStore struct{}

func (CrashStore) SaveRound(ctx context.Context, round state.CrashGameHistory) error {
	return StoreCrashHistory(ctx, &CrashHistoryRecord{
		GameID:         round.GameID,
		ServerSeed:     round.ServerSeed,
		ServerSeedHash: round.ServerSeedHash,
		ClientSeed:     round.ClientSeed,
		CrashPoint:     round.CrashPoint,
		Bettors:        round.Bettors,
		CreatedAt:      round.Timestamp,
	})
}

func (CrashStore) SaveBet(ctx context.Context, gameID string, bet state.ActiveBettor) error {
	record := &CrashBetRecord{
		GameID:        gameID,
		PlayerAddress: bet.Address,
		BetAmount:     bet.BetAmount,
		Status:        "active",
		CreatedAt:     bet.BetTime,
	}
	if bet.AutoCashout > 0 {
		auto := bet.AutoCashout
		record.AutoCashout = &auto
	}
	// The debit already happened, so PnL is recorded even without a bet row
	if err := SubtractWalletPnL(ctx, bet.Address, bet.BetAmount); err != nil {
		log.Printf("⚠️  Failed to update wallet PnL: %v", err)
	}

	if err := StoreCrashBet(ctx, gameID, bet.Address, &CrashBetData{
		BetAmount:   bet.BetAmount,
		AutoCashout: bet.AutoCashout,
	}); err != nil {
		log.Printf("⚠️  Failed to cache crash bet: %v", err)
	}

	return StoreCrashBetPostgres(ctx, record)
}

func (CrashStore) SaveCashout(ctx context.Context, gameID string, bet state.ActiveBettor) error {
	if err := UpdateCrashBetCashout(ctx, gameID, bet.Address, bet.CashoutAt, bet.Payout); err != nil {
		return err
	}
	if err := DeleteCrashBet(ctx, gameID, bet.Address); err != nil {
		log.Printf("⚠️  Failed to delete cached crash bet: %v", err)
	}
	return AddWalletPnL(ctx, bet.Address, bet.Payout)
}

func (CrashStore) SettleLost(ctx context.Context, gameID string) error {
	if err := MarkBetsAsLost(ctx, gameID); err != nil {
		return err
	}
	if err := CleanupCrashGame(ctx, gameID); err != nil {
		log.Printf("⚠️  Failed to cleanup Redis: %v", err)
	}
	return nil
}

func (CrashStore) RecentRounds(ctx context.Context, limit int) ([]state.CrashGameHistory, error) {
	records, err := GetRecentCrashHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]state.CrashGameHistory, 0, len(records))
	for _, r := range records {
		out = append(out, r.History())
	}
	return out, nil
}

// History converts the stored record back to the in-memory round
func (r *CrashHistoryRecord) History() state.CrashGameHistory {
	return state.CrashGameHistory{
		GameID:         r.GameID,
		ServerSeed:     r.ServerSeed,
		ServerSeedHash: r.ServerSeedHash,
		ClientSeed:     r.ClientSeed,
		CrashPoint:     r.CrashPoint,
		Bettors:        r.Bettors,
		Timestamp:      r.CreatedAt,
	}
}
