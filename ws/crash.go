package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/game"
	"coinhype/settle"
	"coinhype/state"

	"github.com/google/uuid"
)

var (
	ErrBettingClosed = errors.New("betting is closed")
	ErrAlreadyBet    = errors.New("already placed a bet this round")
	ErrNoActiveBet   = errors.New("no active bet to cash out")
)

// Ledger is the part of the settlement ledger crash rounds use
type Ledger interface {
	Debit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error)
}

// RoundStore persists crash rounds and their bets
type RoundStore interface {
	SaveRound(ctx context.Context, round state.CrashGameHistory) error
	SaveBet(ctx context.Context, gameID string, bet state.ActiveBettor) error
	SaveCashout(ctx context.Context, gameID string, bet state.ActiveBettor) error
	// SettleLost marks every bet of the round that did not cash out as lost
	SettleLost(ctx context.Context, gameID string) error
	RecentRounds(ctx context.Context, limit int) ([]state.CrashGameHistory, error)
}

// CashoutResult is a settled crash cashout
type CashoutResult struct {
	GameID     string  `json:"gameId"`
	Multiplier float64 `json:"multiplier"`
	Amount     int64   `json:"amount"`
	Payout     int64   `json:"payout"`
	Balance    int64   `json:"balance"`
}

// CrashEngine runs the global multiplayer crash round loop
type CrashEngine struct {
	hub       *Hub
	state     *state.CrashGameState
	ledger    Ledger
	store     RoundStore
	houseEdge float64
	minBet    int64

	countdown     int
	countdownStep time.Duration
	tickInterval  time.Duration
	endWait       time.Duration
	now           func() time.Time
}

func NewCrashEngine(hub *Hub, ledger Ledger, store RoundStore, houseEdge float64, minBet int64) *CrashEngine {
	return &CrashEngine{
		hub:           hub,
		state:         state.NewCrashGameState(config.CrashMaxHistory),
		ledger:        ledger,
		store:         store,
		houseEdge:     houseEdge,
		minBet:        minBet,
		countdown:     int(config.CrashBettingDuration / time.Second),
		countdownStep: time.Second,
		tickInterval:  config.CrashTickInterval,
		endWait:       config.CrashEndWaitDuration,
		now:           time.Now,
	}
}

// State exposes the live round
func (e *CrashEngine) State() *state.CrashGameState { return e.state }

// LoadHistory fills the in-memory history from storage, oldest first
func (e *CrashEngine) LoadHistory(ctx context.Context) {
	rounds, err := e.store.RecentRounds(ctx, config.CrashMaxHistory)
	if err != nil {
		log.Printf("⚠️  Failed to load crash history: %v", err)
		return
	}
	for i := len(rounds) - 1; i >= 0; i-- {
		e.state.AddToHistory(rounds[i])
	}
	log.Printf("✅ Loaded %d crash rounds from database", len(rounds))
}

// Run plays rounds back to back until ctx is cancelled
func (e *CrashEngine) Run(ctx context.Context) error {
	log.Println("🎰 Crash game loop started")
	for {
		if err := e.playRound(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("🛑 Crash game loop stopped")
				return nil
			}
			log.Printf("❌ Crash round failed: %v", err)
		}
		if err := sleepCtx(ctx, e.endWait); err != nil {
			log.Println("🛑 Crash game loop stopped")
			return nil
		}
	}
}

// CrashMultiplier is the displayed multiplier after elapsed running time
func CrashMultiplier(elapsed time.Duration) float64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	return game.RoundDown(math.Exp(config.CrashGrowthRate*ms), 2)
}

// openRound commits a new round and opens betting. The public client seed
// is the round id, so the outcome is fixed before any bet is taken.
func (e *CrashEngine) openRound() (string, error) {
	serverSeed, seedHash, err := crypto.GenerateServerSeed()
	if err != nil {
		return "", err
	}
	gameID := uuid.NewString()
	seeds := game.Seeds{Server: serverSeed, Client: gameID}
	crashPoint := game.CrashPoint(game.Floats(seeds, 0, 1)[0], e.houseEdge)

	e.state.ResetForNewGame(gameID, serverSeed, seedHash, gameID, crashPoint)
	e.hub.Publish(ChannelCrash, Event{Type: "game_start", Data: map[string]any{
		"gameId":         gameID,
		"serverSeedHash": seedHash,
		"clientSeed":     gameID,
		"nonce":          0,
	}})
	log.Printf("🎰 Crash round %s open for bets (hash %s)", gameID, seedHash)
	return gameID, nil
}

func (e *CrashEngine) playRound(ctx context.Context) error {
	gameID, err := e.openRound()
	if err != nil {
		return fmt.Errorf("failed to open crash round: %w", err)
	}

	for i := e.countdown; i > 0; i-- {
		e.hub.Publish(ChannelCrash, Event{Type: "countdown", Data: map[string]any{"countdown": i}})
		if err := sleepCtx(ctx, e.countdownStep); err != nil {
			return err
		}
	}

	start := e.now()
	e.state.Start(start)
	e.hub.Publish(ChannelCrash, Event{Type: "game_running", Data: map[string]any{"gameId": gameID}})

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		if e.tick(ctx, CrashMultiplier(e.now().Sub(start))) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	e.finishRound(ctx)
	return nil
}

// tick settles due auto cashouts, then advances the multiplier. It reports
// whether the round crashed.
func (e *CrashEngine) tick(ctx context.Context, m float64) bool {
	for _, addr := range e.state.DueAutoCashouts(m) {
		if b, gameID, ok := e.state.AutoCashout(addr); ok {
			e.settleCashout(ctx, gameID, b)
		}
	}

	crashed := e.state.SetMultiplier(m)
	if !crashed {
		e.hub.Publish(ChannelCrash, Event{Type: "multiplier_update", Data: map[string]any{"multiplier": m}})
	}
	return crashed
}

// finishRound reveals the seed and records the round
func (e *CrashEngine) finishRound(ctx context.Context) {
	h := e.state.Crash(e.now())
	e.state.AddToHistory(h)

	e.hub.Publish(ChannelCrash, Event{Type: "game_end", Data: h})

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.store.SaveRound(storeCtx, h); err != nil {
		log.Printf("⚠️  Failed to store crash round %s: %v", h.GameID, err)
	}
	if err := e.store.SettleLost(storeCtx, h.GameID); err != nil {
		log.Printf("⚠️  Failed to settle lost bets for %s: %v", h.GameID, err)
	}

	history := e.state.GetHistory()
	e.hub.Publish(ChannelCrash, Event{Type: "crash_history", Data: history})
	log.Printf("💥 Crash round %s crashed at %.2fx (%d bettors)", h.GameID, h.CrashPoint, h.Bettors)
}

/* =========================
   BETS
========================= */

// PlaceBet debits a bet into the current round. It is only accepted while
// betting is open, once per user per round.
func (e *CrashEngine) PlaceBet(ctx context.Context, userID string, amount int64, autoCashout float64) (*state.ActiveBettor, int64, error) {
	if amount < e.minBet {
		return nil, 0, fmt.Errorf("%w: %d < %d", settle.ErrBetTooSmall, amount, e.minBet)
	}
	if autoCashout != 0 && (autoCashout < 1.01 || autoCashout > config.CrashMaxMultiplier) {
		return nil, 0, fmt.Errorf("%w: autoCashout must be in [1.01, %v]", game.ErrInvalidParams, config.CrashMaxMultiplier)
	}
	autoCashout = game.RoundDown(autoCashout, 2)

	gameID, ok := e.state.AddBettor(userID, amount, autoCashout, e.now())
	if !ok {
		if e.state.Snapshot().Phase != state.CrashPhaseBetting {
			return nil, 0, ErrBettingClosed
		}
		return nil, 0, ErrAlreadyBet
	}

	balance, err := e.ledger.Debit(ctx, userID, amount, "crash_bet", gameID)
	if err != nil {
		e.state.RemoveBettor(gameID, userID)
		return nil, 0, err
	}

	bet := state.ActiveBettor{Address: userID, BetAmount: amount, AutoCashout: autoCashout, BetTime: e.now()}
	if err := e.store.SaveBet(ctx, gameID, bet); err != nil {
		log.Printf("⚠️  Failed to store crash bet for %s: %v", userID, err)
	}
	if e.roundOver(gameID) {
		// The round crashed while the row was written, so its lost sweep may
		// have run before the row existed
		settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.store.SettleLost(settleCtx, gameID); err != nil {
			log.Printf("⚠️  Failed to settle late crash bet for %s: %v", userID, err)
		}
	}

	e.broadcastActiveBettors()
	log.Printf("➕ Crash bet %s: %d @ auto %.2fx (game %s)", userID, amount, autoCashout, gameID)
	return &bet, balance, nil
}

// roundOver reports whether gameID has crashed or been replaced
func (e *CrashEngine) roundOver(gameID string) bool {
	snap := e.state.Snapshot()
	if snap.GameID != gameID {
		return true
	}
	return snap.Phase == state.CrashPhaseCrashed || snap.Phase == state.CrashPhaseWaiting
}

// Cashout settles the user's bet at the current multiplier
func (e *CrashEngine) Cashout(ctx context.Context, userID string) (*CashoutResult, error) {
	b, gameID, ok := e.state.Cashout(userID)
	if !ok {
		return nil, ErrNoActiveBet
	}
	return e.settleCashout(ctx, gameID, b)
}

func (e *CrashEngine) settleCashout(ctx context.Context, gameID string, b *state.ActiveBettor) (*CashoutResult, error) {
	payout := game.Payout(b.BetAmount, b.CashoutAt)
	balance, err := e.ledger.Credit(ctx, b.Address, payout, "crash_cashout", gameID)
	if err != nil {
		log.Printf("❌ Failed to credit crash cashout for %s: %v", b.Address, err)
		return nil, err
	}
	e.state.SetPayout(gameID, b.Address, payout)

	b.Payout = payout
	if err := e.store.SaveCashout(ctx, gameID, *b); err != nil {
		log.Printf("⚠️  Failed to store crash cashout for %s: %v", b.Address, err)
	}

	res := &CashoutResult{
		GameID:     gameID,
		Multiplier: b.CashoutAt,
		Amount:     b.BetAmount,
		Payout:     payout,
		Balance:    balance,
	}
	e.hub.SendToUser(b.Address, Event{Type: "crash_cashout_result", Data: res})
	e.broadcastActiveBettors()
	log.Printf("💸 Crash cashout %s at %.2fx: %d (game %s)", b.Address, b.CashoutAt, payout, gameID)
	return res, nil
}

func (e *CrashEngine) broadcastActiveBettors() {
	bettors := e.state.GetActiveBettors()
	e.hub.Publish(ChannelCrash, Event{Type: "active_bettors", Data: map[string]any{
		"bettors": bettors,
		"count":   len(bettors),
	}})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
