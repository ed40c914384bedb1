package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"coinhype/config"
	"coinhype/settle"
	"coinhype/state"

	"github.com/redis/go-redis/v9"
)

var (
	// RedisClient is the global Redis client instance
	RedisClient *redis.Client
)

// CrashBetData is one bet in a live crash round, stored as JSON in the
// round's hash
type CrashBetData struct {
	BetAmount   int64   `json:"amount"`
	AutoCashout float64 `json:"autoCashout,omitempty"`
}

// InitRedis initializes the Redis client connection
func InitRedis(addr, password string, db int) error {
	log.Println("🔌 Connecting to Redis...")

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("✅ Redis connected successfully - URL: %s", addr)
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		log.Println("🔌 Closing Redis connection...")
		return RedisClient.Close()
	}
	return nil
}

func redisClient() (*redis.Client, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	return RedisClient, nil
}

/* =========================
   ROUND HISTORY
   Redis Key: history:{userId} -> LIST of entry JSON, newest first
========================= */

// Cache is the Redis-backed history cache and demo limiter
type Cache struct{}

var _ settle.History = Cache{}

// PushHistory prepends an entry and trims the list to the history limit
func (Cache) PushHistory(ctx context.Context, userID string, entry state.HistoryEntry) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := fmt.Sprintf(config.RedisHistoryKey, userID)
	pipe := rc.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, config.MaxRoundHistory-1)
	pipe.Expire(ctx, key, config.RoundHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push history: %w", err)
	}
	return nil
}

// History returns the cached entries, newest first. An empty slice means
// the cache has nothing for the user.
func (Cache) History(ctx context.Context, userID string) ([]state.HistoryEntry, error) {
	rc, err := redisClient()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(config.RedisHistoryKey, userID)
	items, err := rc.LRange(ctx, key, 0, config.MaxRoundHistory-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]state.HistoryEntry, 0, len(items))
	for _, item := range items {
		var e state.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			log.Printf("⚠️  Failed to unmarshal history entry for %s: %v", userID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ClaimDemo sets the cooldown key if absent
func (Cache) ClaimDemo(ctx context.Context, userID string) (bool, error) {
	rc, err := redisClient()
	if err != nil {
		return false, err
	}

	key := fmt.Sprintf(config.RedisDemoClaimedKey, userID)
	ok, err := rc.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), config.DemoCreditCooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim demo credit: %w", err)
	}
	return ok, nil
}

// ReleaseDemo deletes the cooldown key
func (Cache) ReleaseDemo(ctx context.Context, userID string) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}
	if err := rc.Del(ctx, fmt.Sprintf(config.RedisDemoClaimedKey, userID)).Err(); err != nil {
		return fmt.Errorf("failed to release demo claim: %w", err)
	}
	return nil
}

/* =========================
   AUTH CHALLENGES
   Redis Key: auth:challenge:{address} -> nonce
========================= */

// StoreChallenge saves a login challenge, replacing any previous one
func (Cache) StoreChallenge(ctx context.Context, address, challenge string) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}

	key := fmt.Sprintf(config.RedisAuthChallengeKey, address)
	if err := rc.Set(ctx, key, challenge, config.AuthChallengeTTL).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// ConsumeChallenge returns and deletes the challenge, "" when there is none
func (Cache) ConsumeChallenge(ctx context.Context, address string) (string, error) {
	rc, err := redisClient()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf(config.RedisAuthChallengeKey, address)
	challenge, err := rc.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume challenge: %w", err)
	}
	return challenge, nil
}

/* =========================
   CRASH GAME FUNCTIONS (Hash Map Structure)
   Redis Key: crash:{gameId} -> Hash{playerAddress: bet JSON}
========================= */

// StoreCrashBet stores an active crash bet in Redis hash map
func StoreCrashBet(ctx context.Context, gameID, playerAddress string, bet *CrashBetData) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}
	hashKey := fmt.Sprintf(config.RedisCrashRoundKey, gameID)

	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("failed to marshal crash bet: %w", err)
	}

	if err := rc.HSet(ctx, hashKey, playerAddress, data).Err(); err != nil {
		return fmt.Errorf("failed to store crash bet: %w", err)
	}
	rc.Expire(ctx, hashKey, config.CrashRoundTTL)

	log.Printf("✅ Stored crash bet - Game: %s, Player: %s, Amount: %d", gameID, playerAddress, bet.BetAmount)
	return nil
}

// GetCrashBet retrieves an active crash bet from Redis hash map
func GetCrashBet(ctx context.Context, gameID, playerAddress string) (*CrashBetData, error) {
	rc, err := redisClient()
	if err != nil {
		return nil, err
	}
	hashKey := fmt.Sprintf(config.RedisCrashRoundKey, gameID)

	data, err := rc.HGet(ctx, hashKey, playerAddress).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Bet doesn't exist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crash bet: %w", err)
	}

	var bet CrashBetData
	if err := json.Unmarshal([]byte(data), &bet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal crash bet: %w", err)
	}
	return &bet, nil
}

// DeleteCrashBet removes an active crash bet from Redis hash map
func DeleteCrashBet(ctx context.Context, gameID, playerAddress string) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}
	hashKey := fmt.Sprintf(config.RedisCrashRoundKey, gameID)

	if err := rc.HDel(ctx, hashKey, playerAddress).Err(); err != nil {
		return fmt.Errorf("failed to delete crash bet: %w", err)
	}

	log.Printf("🗑️  Deleted crash bet - Game: %s, Player: %s", gameID, playerAddress)
	return nil
}

// CleanupCrashGame removes all active bets for a crashed game
func CleanupCrashGame(ctx context.Context, gameID string) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}
	hashKey := fmt.Sprintf(config.RedisCrashRoundKey, gameID)

	count, _ := rc.HLen(ctx, hashKey).Result()
	if err := rc.Del(ctx, hashKey).Err(); err != nil {
		return fmt.Errorf("failed to cleanup crash game: %w", err)
	}

	log.Printf("🧹 Cleaned up crash game %s (%d players)", gameID, count)
	return nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheck performs a Redis health check
func HealthCheck(ctx context.Context) error {
	rc, err := redisClient()
	if err != nil {
		return err
	}
	return rc.Ping(ctx).Err()
}
