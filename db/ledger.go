package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"coinhype/crypto"
	"coinhype/game"
	"coinhype/settle"
	"coinhype/state"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger is the Postgres-backed balance, round and seed pair store. It
// works on the global PostgresPool.
type Ledger struct{}

var (
	_ settle.Ledger    = Ledger{}
	_ settle.SeedStore = Ledger{}
)

/* =========================
   BALANCES
========================= */

// Balance returns the user's balance, 0 for unknown users
func (Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	p, err := pool()
	if err != nil {
		return 0, err
	}

	var balance int64
	err = p.QueryRow(ctx, `SELECT balance FROM balances WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Credit adds amount to the balance. (userID, reason, reference) is unique,
// so a repeated credit returns settle.ErrDuplicateRequest.
func (l Ledger) Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive: %d", amount)
	}
	return l.apply(ctx, userID, amount, reason, reference)
}

// Debit removes amount from the balance without letting it go negative
func (l Ledger) Debit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive: %d", amount)
	}
	return l.apply(ctx, userID, -amount, reason, reference)
}

func (Ledger) apply(ctx context.Context, userID string, delta int64, reason, reference string) (int64, error) {
	p, err := pool()
	if err != nil {
		return 0, err
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureUser(ctx, tx, userID); err != nil {
		return 0, err
	}
	if err := insertEntry(ctx, tx, userID, delta, reason, reference); err != nil {
		return 0, err
	}

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE balances SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING balance
	`, userID, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: need %d", settle.ErrInsufficientBalance, -delta)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit balance change: %w", err)
	}

	log.Printf("💰 %s %+d (%s %s) -> %d", userID, delta, reason, reference, balance)
	return balance, nil
}

func insertEntry(ctx context.Context, q querier, userID string, delta int64, reason, reference string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO ledger_entries (user_id, delta, reason, reference)
		VALUES ($1, $2, $3, $4)
	`, userID, delta, reason, reference)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s", settle.ErrDuplicateRequest, reason, reference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

/* =========================
   ROUND SETTLEMENT
========================= */

// SettleRound takes the next nonce of the user's active seed pair, evaluates
// the bet and applies stake and payout in one transaction. A replayed
// idempotency key returns the stored round with settle.ErrDuplicateRequest.
func (l Ledger) SettleRound(ctx context.Context, req settle.PlayRequest, eval settle.Evaluator) (*state.Round, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		stored, err := roundByKey(ctx, p, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			return stored, settle.ErrDuplicateRequest
		}
	}

	// Creates the user and the first seed pair outside the settlement tx
	if _, err := l.ActiveSeedPair(ctx, req.UserID); err != nil {
		return nil, err
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pair, err := lockActiveSeedPair(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE seed_pairs SET nonce = nonce + 1 WHERE id = $1`, pair.ID); err != nil {
		return nil, fmt.Errorf("failed to advance nonce: %w", err)
	}

	outcome, payout, err := eval(game.Seeds{Server: pair.ServerSeed, Client: pair.ClientSeed}, pair.Nonce)
	if err != nil {
		return nil, err
	}

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE balances SET balance = balance - $2 + $3, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, req.UserID, req.Amount, payout).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: bet %d", settle.ErrInsufficientBalance, req.Amount)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle balance: %w", err)
	}

	round := &state.Round{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Game:           req.Game,
		Amount:         req.Amount,
		Payout:         payout,
		Multiplier:     outcome.Multiplier,
		Win:            outcome.Win,
		Params:         req.Params,
		Result:         outcome.Result,
		SeedPairID:     pair.ID,
		ServerSeedHash: pair.ServerSeedHash,
		ClientSeed:     pair.ClientSeed,
		Nonce:          pair.Nonce,
		IdempotencyKey: req.IdempotencyKey,
		Balance:        balance,
		CreatedAt:      time.Now().UTC(),
	}

	if err := insertEntry(ctx, tx, req.UserID, -req.Amount, "bet", round.ID); err != nil {
		return nil, err
	}
	if payout > 0 {
		if err := insertEntry(ctx, tx, req.UserID, payout, "payout", round.ID); err != nil {
			return nil, err
		}
	}

	if err := insertRound(ctx, tx, round); err != nil {
		if isUniqueViolation(err) && req.IdempotencyKey != "" {
			// Lost a race with a concurrent request carrying the same key
			tx.Rollback(ctx)
			stored, lookupErr := roundByKey(ctx, p, req.UserID, req.IdempotencyKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if stored != nil {
				return stored, settle.ErrDuplicateRequest
			}
		}
		return nil, fmt.Errorf("failed to store round: %w", err)
	}

	if err := addWalletPnL(ctx, tx, req.UserID, round.Profit()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit round: %w", err)
	}
	return round, nil
}

const roundColumns = `
	id, user_id, game, amount, payout, multiplier, win, params, result, seed_pair_id,
	server_seed_hash, client_seed, nonce, COALESCE(idempotency_key, ''), balance_after, created_at
`

func insertRound(ctx context.Context, q querier, r *state.Round) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var key *string
	if r.IdempotencyKey != "" {
		key = &r.IdempotencyKey
	}

	_, err = q.Exec(ctx, `
		INSERT INTO rounds
		(id, user_id, game, amount, payout, multiplier, win, params, result, seed_pair_id,
		 server_seed_hash, client_seed, nonce, idempotency_key, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		r.ID, r.UserID, r.Game, r.Amount, r.Payout, r.Multiplier, r.Win, params, result, r.SeedPairID,
		r.ServerSeedHash, r.ClientSeed, int64(r.Nonce), key, r.Balance, r.CreatedAt,
	)
	return err
}

func scanRound(row pgx.Row) (*state.Round, error) {
	var (
		r              state.Round
		params, result []byte
		nonce          int64
	)
	if err := row.Scan(
		&r.ID, &r.UserID, &r.Game, &r.Amount, &r.Payout, &r.Multiplier, &r.Win,
		&params, &result, &r.SeedPairID, &r.ServerSeedHash, &r.ClientSeed, &nonce,
		&r.IdempotencyKey, &r.Balance, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Nonce = uint64(nonce)

	if err := json.Unmarshal(params, &r.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if err := json.Unmarshal(result, &r.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &r, nil
}

func roundByKey(ctx context.Context, q querier, userID, key string) (*state.Round, error) {
	row := q.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	r, err := scanRound(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round by key: %w", err)
	}
	return r, nil
}

// Round returns a settled round by id
func (Ledger) Round(ctx context.Context, id string) (*state.Round, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}

	r, err := scanRound(p.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return r, nil
}

// RecentRounds returns a user's latest rounds, newest first
func (Ledger) RecentRounds(ctx context.Context, userID string, limit int) ([]*state.Round, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}
	return queryRounds(ctx, p, `SELECT `+roundColumns+` FROM rounds WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

// AllRecentRounds returns the latest rounds across users for admins
func (Ledger) AllRecentRounds(ctx context.Context, limit int) ([]*state.Round, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}
	return queryRounds(ctx, p, `SELECT `+roundColumns+` FROM rounds ORDER BY created_at DESC LIMIT $1`, limit)
}

func queryRounds(ctx context.Context, q querier, sql string, args ...any) ([]*state.Round, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []*state.Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rounds, nil
}

/* =========================
   SEED PAIRS
========================= */

const seedPairColumns = `id, user_id, server_seed, server_seed_hash, client_seed, nonce, active, created_at, revealed_at`

func scanSeedPair(row pgx.Row) (*state.SeedPair, error) {
	var (
		s     state.SeedPair
		nonce int64
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.ServerSeed, &s.ServerSeedHash, &s.ClientSeed,
		&nonce, &s.Active, &s.CreatedAt, &s.RevealedAt); err != nil {
		return nil, err
	}
	s.Nonce = uint64(nonce)
	return &s, nil
}

func insertSeedPair(ctx context.Context, q querier, userID, clientSeed string) (*state.SeedPair, error) {
	serverSeed, hash, err := crypto.GenerateServerSeed()
	if err != nil {
		return nil, err
	}
	if clientSeed == "" {
		if clientSeed, err = crypto.GenerateClientSeed(); err != nil {
			return nil, err
		}
	}

	pair := &state.SeedPair{
		ID:             uuid.NewString(),
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: hash,
		ClientSeed:     clientSeed,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	_, err = q.Exec(ctx, `
		INSERT INTO seed_pairs (id, user_id, server_seed, server_seed_hash, client_seed, nonce, active, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, TRUE, $6)
	`, pair.ID, pair.UserID, pair.ServerSeed, pair.ServerSeedHash, pair.ClientSeed, pair.CreatedAt)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func lockActiveSeedPair(ctx context.Context, q querier, userID string) (*state.SeedPair, error) {
	pair, err := scanSeedPair(q.QueryRow(ctx,
		`SELECT `+seedPairColumns+` FROM seed_pairs WHERE user_id = $1 AND active FOR UPDATE`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active seed pair for %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock seed pair: %w", err)
	}
	return pair, nil
}

// ActiveSeedPair returns the user's active pair, creating one on first use
func (Ledger) ActiveSeedPair(ctx context.Context, userID string) (*state.SeedPair, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + seedPairColumns + ` FROM seed_pairs WHERE user_id = $1 AND active`
	pair, err := scanSeedPair(p.QueryRow(ctx, query, userID))
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get seed pair: %w", err)
	}

	if err := ensureUser(ctx, p, userID); err != nil {
		return nil, err
	}
	pair, err = insertSeedPair(ctx, p, userID, "")
	if isUniqueViolation(err) {
		// Created concurrently
		pair, err = scanSeedPair(p.QueryRow(ctx, query, userID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create seed pair: %w", err)
	}

	log.Printf("🌱 Created seed pair %s for %s", pair.ID, userID)
	return pair, nil
}

// RotateSeedPair reveals the active pair and commits a fresh server seed
func (l Ledger) RotateSeedPair(ctx context.Context, userID, clientSeed string) (*state.SeedPair, *state.SeedPair, error) {
	p, err := pool()
	if err != nil {
		return nil, nil, err
	}
	if _, err := l.ActiveSeedPair(ctx, userID); err != nil {
		return nil, nil, err
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockActiveSeedPair(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE seed_pairs SET active = FALSE, revealed_at = $2 WHERE id = $1`, current.ID, now); err != nil {
		return nil, nil, fmt.Errorf("failed to reveal seed pair: %w", err)
	}
	current.Active = false
	current.RevealedAt = &now

	if clientSeed == "" {
		clientSeed = current.ClientSeed
	}
	next, err := insertSeedPair(ctx, tx, userID, clientSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create seed pair: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit seed rotation: %w", err)
	}

	log.Printf("🔄 Rotated seed pair for %s: revealed %s after %d rounds", userID, current.ID, current.Nonce)
	return current, next, nil
}

// RevealedSeedPairs lists the user's retired pairs, newest first
func (Ledger) RevealedSeedPairs(ctx context.Context, userID string, limit int) ([]*state.SeedPair, error) {
	p, err := pool()
	if err != nil {
		return nil, err
	}

	rows, err := p.Query(ctx, `
		SELECT `+seedPairColumns+` FROM seed_pairs
		WHERE user_id = $1 AND NOT active
		ORDER BY revealed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query seed pairs: %w", err)
	}
	defer rows.Close()

	pairs := []*state.SeedPair{}
	for rows.Next() {
		pair, err := scanSeedPair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return pairs, nil
}
