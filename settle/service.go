package settle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/game"
	"coinhype/state"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBetTooSmall         = errors.New("bet amount below minimum")
	ErrPayoutCapExceeded   = errors.New("potential payout exceeds maximum")
	// ErrDuplicateRequest is returned by ledgers for a replayed idempotency
	// key along with the stored round. Play turns it into a replay.
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrDemoCooldown     = errors.New("demo credit already claimed")
)

// Evaluator computes the outcome and payout for the nonce the ledger
// assigns inside its transaction
type Evaluator func(seeds game.Seeds, nonce uint64) (game.Outcome, int64, error)

// PlayRequest is one bet
type PlayRequest struct {
	UserID         string      `json:"-"`
	Game           string      `json:"game"`
	Amount         int64       `json:"amount"`
	Params         game.Params `json:"params"`
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
}

// Ledger owns balances and settled rounds. SettleRound must debit, evaluate,
// credit and record the round atomically.
type Ledger interface {
	SettleRound(ctx context.Context, req PlayRequest, eval Evaluator) (*state.Round, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error)
	Round(ctx context.Context, id string) (*state.Round, error)
	RecentRounds(ctx context.Context, userID string, limit int) ([]*state.Round, error)
}

// SeedStore keeps each user's active seed pair and the revealed ones
type SeedStore interface {
	ActiveSeedPair(ctx context.Context, userID string) (*state.SeedPair, error)
	// RotateSeedPair reveals the active pair and activates a new one. An
	// empty clientSeed keeps the current client seed.
	RotateSeedPair(ctx context.Context, userID, clientSeed string) (revealed, next *state.SeedPair, err error)
	RevealedSeedPairs(ctx context.Context, userID string, limit int) ([]*state.SeedPair, error)
}

// History is the rolling per-user cache and the demo faucet limiter
type History interface {
	PushHistory(ctx context.Context, userID string, entry state.HistoryEntry) error
	History(ctx context.Context, userID string) ([]state.HistoryEntry, error)
	// ClaimDemo reports false when the user already claimed in this window
	ClaimDemo(ctx context.Context, userID string) (bool, error)
	// ReleaseDemo undoes a claim whose credit did not go through
	ReleaseDemo(ctx context.Context, userID string) error
}

// Options are the service limits
type Options struct {
	MinBet     int64
	MaxPayout  int64
	DemoCredit int64
}

// Service settles bets against the ledger
type Service struct {
	games   *game.Registry
	ledger  Ledger
	seeds   SeedStore
	history History
	opts    Options
	now     func() time.Time
}

func NewService(games *game.Registry, ledger Ledger, seeds SeedStore, history History, opts Options) *Service {
	if opts.MinBet < 1 {
		opts.MinBet = 1
	}
	return &Service{
		games:   games,
		ledger:  ledger,
		seeds:   seeds,
		history: history,
		opts:    opts,
		now:     time.Now,
	}
}

// Games returns the registry in use
func (s *Service) Games() *game.Registry { return s.games }

// Ledger returns the underlying ledger
func (s *Service) Ledger() Ledger { return s.ledger }

// PlayResult is a settled round. Replayed is set when the idempotency key
// was seen before and the stored round is returned unchanged.
type PlayResult struct {
	Round    *state.Round `json:"round"`
	Replayed bool         `json:"replayed"`
}

// Play validates and settles one bet
func (s *Service) Play(ctx context.Context, req PlayRequest) (*PlayResult, error) {
	g, err := s.games.Lookup(req.Game)
	if err != nil {
		return nil, err
	}
	if req.Params == nil {
		req.Params = game.Params{}
	}
	if err := g.Validate(req.Params); err != nil {
		return nil, err
	}
	if req.Amount < s.opts.MinBet {
		return nil, fmt.Errorf("%w: %d < %d", ErrBetTooSmall, req.Amount, s.opts.MinBet)
	}
	if s.opts.MaxPayout > 0 {
		if potential := game.MaxPayout(g, req.Amount, req.Params); potential > s.opts.MaxPayout {
			return nil, fmt.Errorf("%w: %d > %d", ErrPayoutCapExceeded, potential, s.opts.MaxPayout)
		}
	}

	eval := func(seeds game.Seeds, nonce uint64) (game.Outcome, int64, error) {
		outcome, err := s.games.Play(req.Game, seeds, nonce, req.Params)
		if err != nil {
			return game.Outcome{}, 0, err
		}
		return outcome, game.Payout(req.Amount, outcome.Multiplier), nil
	}

	round, err := s.ledger.SettleRound(ctx, req, eval)
	if errors.Is(err, ErrDuplicateRequest) && round != nil {
		log.Printf("🔁 Replayed round %s for %s (key %s)", round.ID, req.UserID, req.IdempotencyKey)
		return &PlayResult{Round: round, Replayed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.PushHistory(ctx, req.UserID, round.Entry()); err != nil {
			log.Printf("⚠️  Failed to push history for %s: %v", req.UserID, err)
		}
	}

	log.Printf("🎲 %s %s bet %d -> %.4fx payout %d (nonce %d)",
		req.UserID, req.Game, req.Amount, round.Multiplier, round.Payout, round.Nonce)
	return &PlayResult{Round: round}, nil
}

// Verification is the result of recomputing a round from revealed seeds
type Verification struct {
	// HashValid is nil when no hash was supplied
	HashValid *bool        `json:"hashValid,omitempty"`
	Valid     bool         `json:"valid"`
	Outcome   game.Outcome `json:"outcome"`
}

// VerifyRequest identifies the round to recompute
type VerifyRequest struct {
	Game           string      `json:"game"`
	ServerSeed     string      `json:"serverSeed"`
	ServerSeedHash string      `json:"serverSeedHash,omitempty"`
	ClientSeed     string      `json:"clientSeed"`
	Nonce          uint64      `json:"nonce"`
	Params         game.Params `json:"params"`
}

// Verify recomputes an outcome. It needs no storage.
func (s *Service) Verify(req VerifyRequest) (*Verification, error) {
	if req.ServerSeed == "" {
		return nil, fmt.Errorf("%w: serverSeed is required", game.ErrInvalidParams)
	}
	if req.Params == nil {
		req.Params = game.Params{}
	}
	outcome, err := s.games.Verify(req.Game, game.Seeds{Server: req.ServerSeed, Client: req.ClientSeed}, req.Nonce, req.Params)
	if err != nil {
		return nil, err
	}

	v := &Verification{Valid: true, Outcome: outcome}
	if req.ServerSeedHash != "" {
		ok := crypto.VerifySeed(req.ServerSeed, req.ServerSeedHash)
		v.HashValid = &ok
		v.Valid = ok
	}
	return v, nil
}

/* =========================
   SEEDS
========================= */

// SeedPair returns the active pair without its server seed
func (s *Service) SeedPair(ctx context.Context, userID string) (*state.SeedPair, error) {
	pair, err := s.seeds.ActiveSeedPair(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pair.Public(), nil
}

// RotateSeed reveals the active server seed and commits a new one with the
// same client seed
func (s *Service) RotateSeed(ctx context.Context, userID string) (revealed, next *state.SeedPair, err error) {
	revealed, next, err = s.seeds.RotateSeedPair(ctx, userID, "")
	if err != nil {
		return nil, nil, err
	}
	return revealed, next.Public(), nil
}

// SetClientSeed rotates to a new pair using the player's client seed
func (s *Service) SetClientSeed(ctx context.Context, userID, clientSeed string) (revealed, next *state.SeedPair, err error) {
	if err := crypto.ValidateClientSeed(clientSeed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", game.ErrInvalidParams, err)
	}
	revealed, next, err = s.seeds.RotateSeedPair(ctx, userID, clientSeed)
	if err != nil {
		return nil, nil, err
	}
	return revealed, next.Public(), nil
}

// RevealedSeeds lists previous pairs with their server seeds
func (s *Service) RevealedSeeds(ctx context.Context, userID string) ([]*state.SeedPair, error) {
	return s.seeds.RevealedSeedPairs(ctx, userID, config.MaxRoundHistory)
}

/* =========================
   BALANCE & HISTORY
========================= */

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.ledger.Balance(ctx, userID)
}

// ClaimDemo credits the demo amount once per cooldown window
func (s *Service) ClaimDemo(ctx context.Context, userID string) (int64, error) {
	if s.opts.DemoCredit <= 0 {
		return 0, ErrDemoCooldown
	}
	ok, err := s.history.ClaimDemo(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrDemoCooldown
	}
	ref := s.now().UTC().Format("2006-01-02T15")
	balance, err := s.ledger.Credit(ctx, userID, s.opts.DemoCredit, "demo", ref)
	if errors.Is(err, ErrDuplicateRequest) {
		// Already credited in this window, the claim stands
		return 0, ErrDemoCooldown
	}
	if err != nil {
		if rerr := s.history.ReleaseDemo(context.WithoutCancel(ctx), userID); rerr != nil {
			log.Printf("⚠️  Failed to release demo claim for %s: %v", userID, rerr)
		}
		return 0, err
	}
	log.Printf("🎁 Demo credit %d for %s", s.opts.DemoCredit, userID)
	return balance, nil
}

// History returns the last rounds from the cache, falling back to the
// ledger when the cache is empty or unavailable
func (s *Service) History(ctx context.Context, userID string) ([]state.HistoryEntry, error) {
	if s.history != nil {
		entries, err := s.history.History(ctx, userID)
		if err != nil {
			log.Printf("⚠️  History cache miss for %s: %v", userID, err)
		} else if len(entries) > 0 {
			return entries, nil
		}
	}

	rounds, err := s.ledger.RecentRounds(ctx, userID, config.MaxRoundHistory)
	if err != nil {
		return nil, err
	}
	entries := make([]state.HistoryEntry, 0, len(rounds))
	for _, r := range rounds {
		entries = append(entries, r.Entry())
	}
	return entries, nil
}

// Round returns a settled round, nil when unknown
func (s *Service) Round(ctx context.Context, id string) (*state.Round, error) {
	return s.ledger.Round(ctx, id)
}
