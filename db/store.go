package db

import (
	"context"

	"coinhype/state"
)

// Store bundles the queries the HTTP API reads directly: users, admin
// diagnostics, the leaderboard and crash round lookups.
type Store struct {
	Ledger
	Cache
}

func (Store) EnsureUser(ctx context.Context, userID string) error {
	return EnsureUser(ctx, userID)
}

func (Store) NegativeBalances(ctx context.Context) ([]*state.Balance, error) {
	return NegativeBalances(ctx)
}

func (Store) Leaderboard(ctx context.Context, limit int) ([]*WalletPnLRecord, error) {
	return GetWalletPnLLeaderboard(ctx, limit)
}

func (Store) LeaderboardRank(ctx context.Context, wallet string) (*WalletPnLRecord, error) {
	return GetWalletPnLRank(ctx, wallet)
}

// CrashRound returns a finished crash round and its bets, nil when unknown
func (Store) CrashRound(ctx context.Context, gameID string) (*CrashHistoryRecord, []*CrashBetRecord, error) {
	record, err := GetCrashHistory(ctx, gameID)
	if err != nil || record == nil {
		return nil, nil, err
	}
	bets, err := GetCrashBets(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	return record, bets, nil
}

// Health reports "ok" or the error for each backing service
func (Store) Health(ctx context.Context) map[string]string {
	status := map[string]string{"redis": "ok", "postgres": "ok"}
	if err := HealthCheck(ctx); err != nil {
		status["redis"] = "error: " + err.Error()
	}
	if err := HealthCheckPostgres(ctx); err != nil {
		status["postgres"] = "error: " + err.Error()
	}
	return status
}
