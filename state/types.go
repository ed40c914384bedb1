package state

import (
	"sort"
	"sync"
	"time"
)

// ==============================================================================
// LEDGER RECORDS
// ==============================================================================

// SeedPair is a user's committed server seed plus their client seed. The
// server seed stays secret until the pair is rotated out.
type SeedPair struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	ServerSeed     string     `json:"serverSeed,omitempty"`
	ServerSeedHash string     `json:"serverSeedHash"`
	ClientSeed     string     `json:"clientSeed"`
	Nonce          uint64     `json:"nonce"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
	RevealedAt     *time.Time `json:"revealedAt,omitempty"`
}

// Public returns a copy safe to send to anyone: the server seed is dropped
// while the pair is active
func (s *SeedPair) Public() *SeedPair {
	out := *s
	if out.Active {
		out.ServerSeed = ""
	}
	return &out
}

// Round is one settled bet
type Round struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Game           string         `json:"game"`
	Amount         int64          `json:"amount"`
	Payout         int64          `json:"payout"`
	Multiplier     float64        `json:"multiplier"`
	Win            bool           `json:"win"`
	Params         map[string]any `json:"params"`
	Result         map[string]any `json:"result"`
	SeedPairID     string         `json:"seedPairId"`
	ServerSeedHash string         `json:"serverSeedHash"`
	ClientSeed     string         `json:"clientSeed"`
	Nonce          uint64         `json:"nonce"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	Balance        int64          `json:"balance"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Profit is payout minus stake
func (r *Round) Profit() int64 {
	return r.Payout - r.Amount
}

// Entry is the summary kept in the rolling history
func (r *Round) Entry() HistoryEntry {
	return HistoryEntry{
		RoundID:    r.ID,
		Game:       r.Game,
		Amount:     r.Amount,
		Payout:     r.Payout,
		Multiplier: r.Multiplier,
		Win:        r.Win,
		Nonce:      r.Nonce,
		CreatedAt:  r.CreatedAt,
	}
}

// HistoryEntry is one line of a user's recent history
type HistoryEntry struct {
	RoundID    string    `json:"roundId"`
	Game       string    `json:"game"`
	Amount     int64     `json:"amount"`
	Payout     int64     `json:"payout"`
	Multiplier float64   `json:"multiplier"`
	Win        bool      `json:"win"`
	Nonce      uint64    `json:"nonce"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Balance is a user's credit in minor units
type Balance struct {
	UserID    string    `json:"userId"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ==============================================================================
// CRASH ROUND STATE
// ==============================================================================

type CrashPhase string

const (
	CrashPhaseWaiting CrashPhase = "waiting"
	CrashPhaseBetting CrashPhase = "betting"
	CrashPhaseRunning CrashPhase = "running"
	CrashPhaseCrashed CrashPhase = "crashed"
)

// CrashGameState is the live multiplayer round. All fields are guarded by
// the state mutex; callers use the methods.
type CrashGameState struct {
	mu sync.RWMutex

	Phase CrashPhase

	GameID         string
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	CrashPoint     float64

	Multiplier float64
	StartTime  time.Time

	ActiveBettors map[string]*ActiveBettor
	GameHistory   []CrashGameHistory
	MaxHistory    int
}

// CrashGameHistory is a finished round with its seed revealed
type CrashGameHistory struct {
	GameID         string    `json:"gameId"`
	ServerSeed     string    `json:"serverSeed"`
	ServerSeedHash string    `json:"serverSeedHash"`
	ClientSeed     string    `json:"clientSeed"`
	CrashPoint     float64   `json:"crashPoint"`
	Bettors        int       `json:"bettors"`
	Timestamp      time.Time `json:"timestamp"`
}

// ActiveBettor is one bet in the live round
type ActiveBettor struct {
	Address     string    `json:"address"`
	BetAmount   int64     `json:"betAmount"`
	AutoCashout float64   `json:"autoCashout,omitempty"`
	CashedOut   bool      `json:"cashedOut"`
	CashoutAt   float64   `json:"cashoutAt,omitempty"`
	Payout      int64     `json:"payout,omitempty"`
	BetTime     time.Time `json:"betTime"`
}

// CrashSnapshot is a consistent copy of the round for broadcasting
type CrashSnapshot struct {
	Phase          CrashPhase      `json:"phase"`
	GameID         string          `json:"gameId"`
	ServerSeedHash string          `json:"serverSeedHash"`
	ClientSeed     string          `json:"clientSeed"`
	Multiplier     float64         `json:"multiplier"`
	Bettors        []*ActiveBettor `json:"bettors"`
}

func NewCrashGameState(maxHistory int) *CrashGameState {
	return &CrashGameState{
		Phase:         CrashPhaseWaiting,
		Multiplier:    1.0,
		ActiveBettors: make(map[string]*ActiveBettor),
		GameHistory:   make([]CrashGameHistory, 0, maxHistory),
		MaxHistory:    maxHistory,
	}
}

// ResetForNewGame opens betting on a new committed round
func (c *CrashGameState) ResetForNewGame(gameID, serverSeed, serverSeedHash, clientSeed string, crashPoint float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Phase = CrashPhaseBetting
	c.GameID = gameID
	c.ServerSeed = serverSeed
	c.ServerSeedHash = serverSeedHash
	c.ClientSeed = clientSeed
	c.CrashPoint = crashPoint
	c.Multiplier = 1.0
	c.StartTime = time.Time{}
	c.ActiveBettors = make(map[string]*ActiveBettor)
}

// Start moves the round from betting to running
func (c *CrashGameState) Start(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Phase = CrashPhaseRunning
	c.StartTime = now
}

// SetMultiplier records the current multiplier and reports whether the
// round has reached its crash point. Reaching it closes cashouts at once.
func (c *CrashGameState) SetMultiplier(m float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m >= c.CrashPoint {
		c.Multiplier = c.CrashPoint
		c.Phase = CrashPhaseCrashed
		return true
	}
	c.Multiplier = m
	return false
}

// Crash ends the round and returns its history record
func (c *CrashGameState) Crash(now time.Time) CrashGameHistory {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Phase = CrashPhaseCrashed
	c.Multiplier = c.CrashPoint
	return CrashGameHistory{
		GameID:         c.GameID,
		ServerSeed:     c.ServerSeed,
		ServerSeedHash: c.ServerSeedHash,
		ClientSeed:     c.ClientSeed,
		CrashPoint:     c.CrashPoint,
		Bettors:        len(c.ActiveBettors),
		Timestamp:      now,
	}
}

func (c *CrashGameState) AddToHistory(history CrashGameHistory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GameHistory = append(c.GameHistory, history)
	if len(c.GameHistory) > c.MaxHistory {
		c.GameHistory = c.GameHistory[len(c.GameHistory)-c.MaxHistory:]
	}
}

// GetHistory returns finished rounds, newest first
func (c *CrashGameState) GetHistory() []CrashGameHistory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CrashGameHistory, len(c.GameHistory))
	for i, h := range c.GameHistory {
		out[len(out)-1-i] = h
	}
	return out
}

// AddBettor places a bet during the betting phase. It reports false when
// betting is closed or the address already has a bet this round.
func (c *CrashGameState) AddBettor(address string, amount int64, autoCashout float64, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Phase != CrashPhaseBetting {
		return c.GameID, false
	}
	if _, exists := c.ActiveBettors[address]; exists {
		return c.GameID, false
	}
	c.ActiveBettors[address] = &ActiveBettor{
		Address:     address,
		BetAmount:   amount,
		AutoCashout: autoCashout,
		BetTime:     now,
	}
	return c.GameID, true
}

// RemoveBettor drops a bet that could not be debited
func (c *CrashGameState) RemoveBettor(gameID, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GameID == gameID {
		delete(c.ActiveBettors, address)
	}
}

// Cashout settles a running bet at the current multiplier
func (c *CrashGameState) Cashout(address string) (*ActiveBettor, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Phase != CrashPhaseRunning {
		return nil, c.GameID, false
	}
	b, ok := c.ActiveBettors[address]
	if !ok || b.CashedOut {
		return nil, c.GameID, false
	}
	b.CashedOut = true
	b.CashoutAt = c.Multiplier
	out := *b
	return &out, c.GameID, true
}

// AutoCashout settles a running bet at its auto cashout target. Targets
// above the crash point never pay.
func (c *CrashGameState) AutoCashout(address string) (*ActiveBettor, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Phase != CrashPhaseRunning {
		return nil, c.GameID, false
	}
	b, ok := c.ActiveBettors[address]
	if !ok || b.CashedOut || b.AutoCashout <= 0 || b.AutoCashout > c.CrashPoint {
		return nil, c.GameID, false
	}
	b.CashedOut = true
	b.CashoutAt = b.AutoCashout
	out := *b
	return &out, c.GameID, true
}

// SetPayout records the credited payout for a cashed out bet
func (c *CrashGameState) SetPayout(gameID, address string, payout int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.ActiveBettors[address]; ok && c.GameID == gameID {
		b.Payout = payout
	}
}

// DueAutoCashouts returns bettors whose auto cashout target is reached by
// m and does not exceed the crash point
func (c *CrashGameState) DueAutoCashouts(m float64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var due []string
	for addr, b := range c.ActiveBettors {
		if !b.CashedOut && b.AutoCashout > 0 && b.AutoCashout <= m && b.AutoCashout <= c.CrashPoint {
			due = append(due, addr)
		}
	}
	sort.Strings(due)
	return due
}

func (c *CrashGameState) GetActiveBettors() []*ActiveBettor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bettorsLocked()
}

func (c *CrashGameState) bettorsLocked() []*ActiveBettor {
	bettors := make([]*ActiveBettor, 0, len(c.ActiveBettors))
	for _, b := range c.ActiveBettors {
		cp := *b
		bettors = append(bettors, &cp)
	}
	sort.Slice(bettors, func(i, j int) bool {
		if bettors[i].BetAmount != bettors[j].BetAmount {
			return bettors[i].BetAmount > bettors[j].BetAmount
		}
		return bettors[i].Address < bettors[j].Address
	})
	return bettors
}

// Snapshot copies the public view of the round
func (c *CrashGameState) Snapshot() CrashSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CrashSnapshot{
		Phase:          c.Phase,
		GameID:         c.GameID,
		ServerSeedHash: c.ServerSeedHash,
		ClientSeed:     c.ClientSeed,
		Multiplier:     c.Multiplier,
		Bettors:        c.bettorsLocked(),
	}
}
