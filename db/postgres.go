package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"coinhype/config"
	"coinhype/state"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// PostgresPool is the global PostgreSQL connection pool
	PostgresPool *pgxpool.Pool

	ErrNotFound = errors.New("not found")
)

// CrashHistoryRecord represents a finished multiplayer crash round
type CrashHistoryRecord struct {
	GameID         string    `json:"gameId"`
	ServerSeed     string    `json:"serverSeed"`
	ServerSeedHash string    `json:"serverSeedHash"`
	ClientSeed     string    `json:"clientSeed"`
	CrashPoint     float64   `json:"crashPoint"`
	Bettors        int       `json:"bettors"`
	CreatedAt      time.Time `json:"createdAt"`
}

// InitPostgres initializes the PostgreSQL connection pool
func InitPostgres(databaseURL string) error {
	log.Println("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	// Create connection pool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure pool settings
	poolConfig.MaxConns = config.PostgresMaxConns
	poolConfig.MinConns = config.PostgresMinConns
	poolConfig.MaxConnLifetime = config.PostgresConnMaxLifetime

	PostgresPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := PostgresPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ PostgreSQL connected successfully")

	if err := InitSchema(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ClosePostgres closes the PostgreSQL connection pool
func ClosePostgres() {
	if PostgresPool != nil {
		log.Println("🔌 Closing PostgreSQL connection...")
		PostgresPool.Close()
	}
}

// InitSchema creates the database tables if they don't exist
func InitSchema(ctx context.Context) error {
	log.Println("📋 Initializing database schema...")

	schemas := []struct {
		name string
		sql  string
	}{
		{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS balances (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`},
		{"ledger_entries", `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			delta BIGINT NOT NULL,
			reason TEXT NOT NULL,
			reference TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, reason, reference)
		);
		`},
		{"seed_pairs", `
		CREATE TABLE IF NOT EXISTS seed_pairs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			server_seed TEXT NOT NULL,
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			nonce BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			revealed_at TIMESTAMPTZ
		);

		-- One active pair per user
		CREATE UNIQUE INDEX IF NOT EXISTS idx_seed_pairs_active ON seed_pairs(user_id) WHERE active;

		CREATE INDEX IF NOT EXISTS idx_seed_pairs_revealed ON seed_pairs(user_id, revealed_at DESC) WHERE NOT active;
		`},
		{"rounds", `
		CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			game TEXT NOT NULL,
			amount BIGINT NOT NULL,
			payout BIGINT NOT NULL,
			multiplier DOUBLE PRECISION NOT NULL,
			win BOOLEAN NOT NULL,
			params JSONB NOT NULL,
			result JSONB NOT NULL,
			seed_pair_id TEXT NOT NULL REFERENCES seed_pairs(id),
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			nonce BIGINT NOT NULL,
			idempotency_key TEXT,
			balance_after BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, idempotency_key),
			UNIQUE(seed_pair_id, nonce)
		);

		CREATE INDEX IF NOT EXISTS idx_rounds_user_created ON rounds(user_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_rounds_created ON rounds(created_at DESC);
		`},
		{"crash_history", `
		CREATE TABLE IF NOT EXISTS crash_history (
			id SERIAL PRIMARY KEY,
			game_id TEXT NOT NULL UNIQUE,
			server_seed TEXT NOT NULL,
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			crash_point DOUBLE PRECISION NOT NULL,
			bettors INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		-- Index on created_at for time-based queries
		CREATE INDEX IF NOT EXISTS idx_crash_history_created_at ON crash_history(created_at DESC);
		`},
		{"crash_bets", `
		CREATE TABLE IF NOT EXISTS crash_bets (
			id SERIAL PRIMARY KEY,
			game_id TEXT NOT NULL,
			player_address TEXT NOT NULL,
			bet_amount BIGINT NOT NULL,
			auto_cashout DOUBLE PRECISION,
			cashout_multiplier DOUBLE PRECISION,
			payout_amount BIGINT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			cashed_out_at TIMESTAMPTZ,
			UNIQUE(game_id, player_address)
		);

		CREATE INDEX IF NOT EXISTS idx_crash_bets_player ON crash_bets(player_address);

		CREATE INDEX IF NOT EXISTS idx_crash_bets_status ON crash_bets(status);
		`},
		{"wallet_pnl", `
		CREATE TABLE IF NOT EXISTS wallet_pnl (
			wallet_address TEXT PRIMARY KEY,
			amount BIGINT NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_wallet_pnl_amount ON wallet_pnl(amount DESC);
		`},
	}

	for _, s := range schemas {
		if _, err := PostgresPool.Exec(ctx, s.sql); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.name, err)
		}
	}

	log.Println("✅ Database schema initialized")
	return nil
}

// querier is satisfied by the pool and by transactions
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pool() (*pgxpool.Pool, error) {
	if PostgresPool == nil {
		return nil, fmt.Errorf("PostgreSQL connection pool not initialized")
	}
	return PostgresPool, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ensureUser creates the user and an empty balance on first sight
func ensureUser(ctx context.Context, q querier, userID string) error {
	if _, err := q.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if _, err := q.Exec(ctx, `INSERT INTO balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// EnsureUser upserts a user row, used at login
func EnsureUser(ctx context.Context, userID string) error {
	p, err := pool()
	if err != nil {
		return err
	}
	return ensureUser(ctx, p, userID)
}

/* =========================
   CRASH GAME HISTORY
========================= */

// StoreCrashHistory stores a crash game result in PostgreSQL
func StoreCrashHistory(ctx context.Context, record *CrashHistoryRecord) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping crash history storage")
		return nil
	}

	query := `
		INSERT INTO crash_history
		(game_id, server_seed, server_seed_hash, client_seed, crash_point, bettors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (game_id) DO NOTHING
	`

	_, err := PostgresPool.Exec(
		ctx,
		query,
		record.GameID,
		record.ServerSeed,
		record.ServerSeedHash,
		record.ClientSeed,
		record.CrashPoint,
		record.Bettors,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store crash history: %w", err)
	}

	log.Printf("✅ Stored crash history - Game: %s, Crash: %.2fx", record.GameID, record.CrashPoint)
	return nil
}

// GetCrashHistory retrieves a crash game history by game ID
func GetCrashHistory(ctx context.Context, gameID string) (*CrashHistoryRecord, error) {
	if PostgresPool == nil {
		return nil, nil
	}

	query := `
		SELECT game_id, server_seed, server_seed_hash, client_seed, crash_point, bettors, created_at
		FROM crash_history
		WHERE game_id = $1
	`

	var record CrashHistoryRecord
	err := PostgresPool.QueryRow(ctx, query, gameID).Scan(
		&record.GameID,
		&record.ServerSeed,
		&record.ServerSeedHash,
		&record.ClientSeed,
		&record.CrashPoint,
		&record.Bettors,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Game not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crash history: %w", err)
	}

	return &record, nil
}

// GetRecentCrashHistory retrieves the N most recent crash games
func GetRecentCrashHistory(ctx context.Context, limit int) ([]*CrashHistoryRecord, error) {
	if PostgresPool == nil {
		return []*CrashHistoryRecord{}, nil
	}

	query := `
		SELECT game_id, server_seed, server_seed_hash, client_seed, crash_point, bettors, created_at
		FROM crash_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := PostgresPool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crash history: %w", err)
	}
	defer rows.Close()

	var records []*CrashHistoryRecord
	for rows.Next() {
		var record CrashHistoryRecord
		if err := rows.Scan(
			&record.GameID,
			&record.ServerSeed,
			&record.ServerSeedHash,
			&record.ClientSeed,
			&record.CrashPoint,
			&record.Bettors,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

/* =========================
   CRASH BETS
========================= */

// CrashBetRecord represents a crash game bet
type CrashBetRecord struct {
	ID                int        `json:"id"`
	GameID            string     `json:"gameId"`
	PlayerAddress     string     `json:"playerAddress"`
	BetAmount         int64      `json:"betAmount"`
	AutoCashout       *float64   `json:"autoCashout,omitempty"`
	CashoutMultiplier *float64   `json:"cashoutMultiplier,omitempty"`
	PayoutAmount      *int64     `json:"payoutAmount,omitempty"`
	Status            string     `json:"status"` // active, cashed_out, lost
	CreatedAt         time.Time  `json:"createdAt"`
	CashedOutAt       *time.Time `json:"cashedOutAt,omitempty"`
}

// StoreCrashBetPostgres stores a new crash bet in PostgreSQL
func StoreCrashBetPostgres(ctx context.Context, bet *CrashBetRecord) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping bet storage")
		return nil
	}

	query := `
		INSERT INTO crash_bets
		(game_id, player_address, bet_amount, auto_cashout, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, player_address) DO NOTHING
	`

	_, err := PostgresPool.Exec(
		ctx,
		query,
		bet.GameID,
		bet.PlayerAddress,
		bet.BetAmount,
		bet.AutoCashout,
		bet.Status,
		bet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store crash bet: %w", err)
	}

	log.Printf("✅ Stored crash bet - Player: %s, Amount: %d", bet.PlayerAddress, bet.BetAmount)
	return nil
}

// UpdateCrashBetCashout updates a bet when player cashes out
func UpdateCrashBetCashout(ctx context.Context, gameID, playerAddress string, cashoutMultiplier float64, payoutAmount int64) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping bet update")
		return nil
	}

	query := `
		UPDATE crash_bets
		SET cashout_multiplier = $1,
		    payout_amount = $2,
		    status = 'cashed_out',
		    cashed_out_at = NOW()
		WHERE game_id = $3 AND player_address = $4 AND status = 'active'
	`

	result, err := PostgresPool.Exec(ctx, query, cashoutMultiplier, payoutAmount, gameID, playerAddress)
	if err != nil {
		return fmt.Errorf("failed to update crash bet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: no active bet for player %s in game %s", ErrNotFound, playerAddress, gameID)
	}

	log.Printf("✅ Updated crash bet - Player: %s, Cashout: %.2fx, Payout: %d",
		playerAddress, cashoutMultiplier, payoutAmount)
	return nil
}

// MarkBetsAsLost marks all active bets for a game as lost
func MarkBetsAsLost(ctx context.Context, gameID string) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping")
		return nil
	}

	query := `
		UPDATE crash_bets
		SET status = 'lost',
		    payout_amount = 0
		WHERE game_id = $1 AND status = 'active'
	`

	result, err := PostgresPool.Exec(ctx, query, gameID)
	if err != nil {
		return fmt.Errorf("failed to mark bets as lost: %w", err)
	}

	log.Printf("🔴 Marked %d bets as lost for game %s", result.RowsAffected(), gameID)
	return nil
}

// GetCrashBets lists every bet placed in a crash game
func GetCrashBets(ctx context.Context, gameID string) ([]*CrashBetRecord, error) {
	if PostgresPool == nil {
		return []*CrashBetRecord{}, nil
	}

	query := `
		SELECT id, game_id, player_address, bet_amount, auto_cashout, cashout_multiplier,
		       payout_amount, status, created_at, cashed_out_at
		FROM crash_bets
		WHERE game_id = $1
		ORDER BY bet_amount DESC
	`

	rows, err := PostgresPool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crash bets: %w", err)
	}
	defer rows.Close()

	var bets []*CrashBetRecord
	for rows.Next() {
		var bet CrashBetRecord
		if err := rows.Scan(
			&bet.ID,
			&bet.GameID,
			&bet.PlayerAddress,
			&bet.BetAmount,
			&bet.AutoCashout,
			&bet.CashoutMultiplier,
			&bet.PayoutAmount,
			&bet.Status,
			&bet.CreatedAt,
			&bet.CashedOutAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bets = append(bets, &bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bets, nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheckPostgres performs a PostgreSQL health check
func HealthCheckPostgres(ctx context.Context) error {
	p, err := pool()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

/* =========================
   WALLET PNL
========================= */

// WalletPnLRecord represents a wallet's cumulative PnL in minor units
type WalletPnLRecord struct {
	WalletAddress string `json:"walletAddress"`
	Amount        int64  `json:"amount"`
	Rank          int    `json:"rank,omitempty"`
}

// addWalletPnL applies a signed PnL delta (upsert)
func addWalletPnL(ctx context.Context, q querier, walletAddress string, delta int64) error {
	query := `
		INSERT INTO wallet_pnl (wallet_address, amount)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE
		SET amount = wallet_pnl.amount + $2
	`

	if _, err := q.Exec(ctx, query, walletAddress, delta); err != nil {
		return fmt.Errorf("failed to update wallet PnL: %w", err)
	}
	return nil
}

// SubtractWalletPnL subtracts bet amount from wallet's PnL (upsert)
func SubtractWalletPnL(ctx context.Context, walletAddress string, betAmount int64) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping PnL update")
		return nil
	}
	if err := addWalletPnL(ctx, PostgresPool, walletAddress, -betAmount); err != nil {
		return err
	}
	log.Printf("📉 Subtracted %d from wallet %s PnL", betAmount, walletAddress)
	return nil
}

// AddWalletPnL adds payout amount to wallet's PnL
func AddWalletPnL(ctx context.Context, walletAddress string, payoutAmount int64) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping PnL update")
		return nil
	}
	if err := addWalletPnL(ctx, PostgresPool, walletAddress, payoutAmount); err != nil {
		return err
	}
	log.Printf("📈 Added %d to wallet %s PnL", payoutAmount, walletAddress)
	return nil
}

// GetWalletPnLLeaderboard returns top N wallets sorted by PnL descending
func GetWalletPnLLeaderboard(ctx context.Context, limit int) ([]*WalletPnLRecord, error) {
	if PostgresPool == nil {
		return []*WalletPnLRecord{}, nil
	}

	query := `
		SELECT wallet_address, amount,
		       ROW_NUMBER() OVER (ORDER BY amount DESC) as rank
		FROM wallet_pnl
		ORDER BY amount DESC
		LIMIT $1
	`

	rows, err := PostgresPool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []*WalletPnLRecord
	for rows.Next() {
		var record WalletPnLRecord
		if err := rows.Scan(&record.WalletAddress, &record.Amount, &record.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetWalletPnLRank returns a specific wallet's rank and PnL
func GetWalletPnLRank(ctx context.Context, walletAddress string) (*WalletPnLRecord, error) {
	if PostgresPool == nil {
		return nil, nil
	}

	query := `
		SELECT wallet_address, amount, rank FROM (
			SELECT wallet_address, amount,
			       ROW_NUMBER() OVER (ORDER BY amount DESC) as rank
			FROM wallet_pnl
		) ranked
		WHERE wallet_address = $1
	`

	var record WalletPnLRecord
	err := PostgresPool.QueryRow(ctx, query, walletAddress).Scan(
		&record.WalletAddress,
		&record.Amount,
		&record.Rank,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet rank: %w", err)
	}

	return &record, nil
}

// NegativeBalance is a balance row that violates the ledger invariant
type NegativeBalance = state.Balance

// NegativeBalances lists balances below zero. The CHECK constraint keeps
// this empty; the admin endpoint exposes it as a diagnostic.
func NegativeBalances(ctx context.Context) ([]*NegativeBalance, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}

	rows, err := p.Query(ctx, `SELECT user_id, balance, updated_at FROM balances WHERE balance < 0 ORDER BY balance`)
	if err != nil {
		return nil, fmt.Errorf("failed to query negative balances: %w", err)
	}
	defer rows.Close()

	out := []*NegativeBalance{}
	for rows.Next() {
		var b NegativeBalance
		if err := rows.Scan(&b.UserID, &b.Balance, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
