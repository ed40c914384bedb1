// Package settletest provides an in-memory ledger, seed store and cache for
// tests of packages built on settle.
package settletest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/game"
	"coinhype/settle"
	"coinhype/state"

	"github.com/google/uuid"
)

// Store implements settle.Ledger, settle.SeedStore and settle.History. The
// mutex is held across evaluation, like the row lock in the Postgres ledger.
type Store struct {
	mu sync.Mutex

	balances   map[string]int64
	entries    map[string]bool
	active     map[string]*state.SeedPair
	revealed   map[string][]*state.SeedPair
	rounds     map[string]*state.Round
	byKey      map[string]*state.Round
	history    map[string][]state.HistoryEntry
	demo       map[string]bool
	challenges map[string]string

	// HistoryErr makes the cache fail, to exercise fallbacks
	HistoryErr error
}

var (
	_ settle.Ledger    = (*Store)(nil)
	_ settle.SeedStore = (*Store)(nil)
	_ settle.History   = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		balances:   make(map[string]int64),
		entries:    make(map[string]bool),
		active:     make(map[string]*state.SeedPair),
		revealed:   make(map[string][]*state.SeedPair),
		rounds:     make(map[string]*state.Round),
		byKey:      make(map[string]*state.Round),
		history:    make(map[string][]state.HistoryEntry),
		demo:       make(map[string]bool),
		challenges: make(map[string]string),
	}
}

// SetBalance overwrites a balance
func (s *Store) SetBalance(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
}

func (s *Store) Balance(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *Store) Credit(_ context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive: %d", amount)
	}
	return s.apply(userID, amount, reason, reference)
}

func (s *Store) Debit(_ context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive: %d", amount)
	}
	return s.apply(userID, -amount, reason, reference)
}

func (s *Store) apply(userID string, delta int64, reason, reference string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "|" + reason + "|" + reference
	if s.entries[key] {
		return 0, fmt.Errorf("%w: %s %s", settle.ErrDuplicateRequest, reason, reference)
	}
	if s.balances[userID]+delta < 0 {
		return 0, fmt.Errorf("%w: need %d", settle.ErrInsufficientBalance, -delta)
	}
	s.entries[key] = true
	s.balances[userID] += delta
	return s.balances[userID], nil
}

func (s *Store) SettleRound(_ context.Context, req settle.PlayRequest, eval settle.Evaluator) (*state.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idemKey := req.UserID + "|" + req.IdempotencyKey
	if req.IdempotencyKey != "" {
		if r, ok := s.byKey[idemKey]; ok {
			return r, settle.ErrDuplicateRequest
		}
	}

	pair, err := s.activeLocked(req.UserID)
	if err != nil {
		return nil, err
	}
	if s.balances[req.UserID] < req.Amount {
		return nil, fmt.Errorf("%w: bet %d", settle.ErrInsufficientBalance, req.Amount)
	}

	outcome, payout, err := eval(game.Seeds{Server: pair.ServerSeed, Client: pair.ClientSeed}, pair.Nonce)
	if err != nil {
		return nil, err
	}

	s.balances[req.UserID] += payout - req.Amount
	r := &state.Round{
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
		Balance:        s.balances[req.UserID],
		CreatedAt:      time.Now().UTC(),
	}
	pair.Nonce++

	s.rounds[r.ID] = r
	if req.IdempotencyKey != "" {
		s.byKey[idemKey] = r
	}
	return r, nil
}

func (s *Store) Round(_ context.Context, id string) (*state.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds[id], nil
}

func (s *Store) RecentRounds(_ context.Context, userID string, limit int) ([]*state.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*state.Round{}
	for _, r := range s.rounds {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeedPairID == out[j].SeedPairID {
			return out[i].Nonce > out[j].Nonce
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AllRecentRounds returns rounds across users
func (s *Store) AllRecentRounds(ctx context.Context, limit int) ([]*state.Round, error) {
	s.mu.Lock()
	users := make(map[string]bool)
	for _, r := range s.rounds {
		users[r.UserID] = true
	}
	s.mu.Unlock()

	out := []*state.Round{}
	for u := range users {
		rounds, _ := s.RecentRounds(ctx, u, limit)
		out = append(out, rounds...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

/* =========================
   SEEDS
========================= */

func (s *Store) activeLocked(userID string) (*state.SeedPair, error) {
	if pair, ok := s.active[userID]; ok {
		return pair, nil
	}
	return s.newPairLocked(userID, "")
}

func (s *Store) newPairLocked(userID, clientSeed string) (*state.SeedPair, error) {
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
	s.active[userID] = pair
	return pair, nil
}

func (s *Store) ActiveSeedPair(_ context.Context, userID string) (*state.SeedPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, err := s.activeLocked(userID)
	if err != nil {
		return nil, err
	}
	out := *pair
	return &out, nil
}

func (s *Store) RotateSeedPair(_ context.Context, userID, clientSeed string) (*state.SeedPair, *state.SeedPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.activeLocked(userID)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	current.Active = false
	current.RevealedAt = &now
	s.revealed[userID] = append([]*state.SeedPair{current}, s.revealed[userID]...)

	if clientSeed == "" {
		clientSeed = current.ClientSeed
	}
	next, err := s.newPairLocked(userID, clientSeed)
	if err != nil {
		return nil, nil, err
	}
	revealed, out := *current, *next
	return &revealed, &out, nil
}

func (s *Store) RevealedSeedPairs(_ context.Context, userID string, limit int) ([]*state.SeedPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs := s.revealed[userID]
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	out := make([]*state.SeedPair, len(pairs))
	copy(out, pairs)
	return out, nil
}

/* =========================
   CACHE
========================= */

func (s *Store) PushHistory(_ context.Context, userID string, entry state.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return s.HistoryErr
	}

	list := append([]state.HistoryEntry{entry}, s.history[userID]...)
	if len(list) > config.MaxRoundHistory {
		list = list[:config.MaxRoundHistory]
	}
	s.history[userID] = list
	return nil
}

func (s *Store) History(_ context.Context, userID string) ([]state.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return nil, s.HistoryErr
	}
	out := make([]state.HistoryEntry, len(s.history[userID]))
	copy(out, s.history[userID])
	return out, nil
}

func (s *Store) ClaimDemo(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.demo[userID] {
		return false, nil
	}
	s.demo[userID] = true
	return true, nil
}

func (s *Store) ReleaseDemo(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.demo, userID)
	return nil
}

func (s *Store) StoreChallenge(_ context.Context, address, challenge string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[address] = challenge
	return nil
}

func (s *Store) ConsumeChallenge(_ context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.challenges[address]
	delete(s.challenges, address)
	return c, nil
}
