package config

import (
	"time"
)

/* =========================
   FAIRNESS
========================= */

const (
	// Default house edge applied by every game that carries one (1%)
	DefaultHouseEdge = 0.01

	// Seed sizes in random bytes (hex doubles the length)
	ServerSeedBytes = 32
	ClientSeedBytes = 16

	// Client seeds chosen by players
	MinClientSeedLen = 1
	MaxClientSeedLen = 64
)

/* =========================
   GAME MECHANICS - CRASH ROUNDS
========================= */

const (
	CrashBettingDuration = 5 * time.Second        // betting window before launch
	CrashTickInterval    = 100 * time.Millisecond // multiplier broadcast interval
	CrashGrowthRate      = 0.00006                // m(t) = e^(rate * elapsedMs)
	CrashEndWaitDuration = 3 * time.Second        // pause after a crash
	CrashMaxHistory      = 10                     // rounds kept in memory
	CrashMaxMultiplier   = 1000000.0
)

/* =========================
   GAME MECHANICS - CANDLEFLIP
========================= */

const (
	CandleflipStartingPrice   = 1.0
	CandleflipTotalTicks      = 40
	CandleflipBigMoveChance   = 0.01
	CandleflipBigMovePct      = 0.20 // ±20% for big moves
	CandleflipSmallMovePctMin = 0.01 // ±1% minimum
	CandleflipSmallMovePctMax = 0.05 // ±5% maximum
)

/* =========================
   HISTORY
========================= */

const (
	// Per-user rolling history length
	MaxRoundHistory = 50

	// Leaderboard size returned by the API
	LeaderboardSize = 20

	// Upper bound for GET /api/admin/rounds?limit=
	MaxAdminRounds = 500
)

/* =========================
   REDIS TTL CONFIGURATION
========================= */

const (
	// Login challenge lifetime
	// Key: auth:challenge:{address}
	AuthChallengeTTL = 5 * time.Minute

	// Demo credit cooldown
	// Key: demo:claimed:{userId}
	DemoCreditCooldown = 24 * time.Hour

	// Rolling history TTL, refreshed on every push
	// Key: history:{userId}
	RoundHistoryTTL = 7 * 24 * time.Hour

	// Crash round bets (HASH userId -> bet JSON)
	// Key: crash:{roundId}
	CrashRoundTTL = 1 * time.Hour
)

/* =========================
   REDIS KEY PATTERNS
========================= */

const (
	RedisAuthChallengeKey = "auth:challenge:%s"
	RedisDemoClaimedKey   = "demo:claimed:%s"
	RedisHistoryKey       = "history:%s"
	RedisCrashRoundKey    = "crash:%s"
)

/* =========================
   SESSION TOKENS
========================= */

const (
	TokenIssuer   = "coinhype"
	TokenLifetime = 24 * time.Hour
	MinJWTSecret  = 16
)

/* =========================
   POSTGRESQL CONFIGURATION
========================= */

const (
	PostgresMaxConns        = 25
	PostgresMinConns        = 5
	PostgresConnMaxLifetime = 5 * time.Minute
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSReadDeadline  = 60 * time.Second
	WSWriteDeadline = 10 * time.Second
	WSPingInterval  = 30 * time.Second

	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSSendBufferSize  = 256

	MaxMessageSize = 64 * 1024
)

/* =========================
   HTTP SERVER
========================= */

const (
	ReadHeaderTimeout = 5 * time.Second
	ShutdownTimeout   = 10 * time.Second
	MaxRequestBody    = 64 * 1024
)
