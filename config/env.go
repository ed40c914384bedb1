package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds runtime settings read from the environment
type Config struct {
	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	ServerAddr    string
	JWTSecret     string
	HouseEdge     float64
	MinBet        int64
	MaxPayout     int64
	DemoCredit    int64
	AdminWallets  map[string]bool
	CrashEnabled  bool
}

// LoadDotEnv loads .env files into the process environment. A missing file
// only produces a warning.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables")
		return
	}
	log.Println("✅ Loaded environment variables from .env")
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		ServerAddr:    getEnv("SERVER_ADDR", "0.0.0.0:8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminWallets:  parseWallets(os.Getenv("ADMIN_WALLETS")),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.HouseEdge, err = getFloat("HOUSE_EDGE", DefaultHouseEdge); err != nil {
		return nil, err
	}
	if cfg.MinBet, err = getInt64("MIN_BET", 1); err != nil {
		return nil, err
	}
	if cfg.MaxPayout, err = getInt64("MAX_PAYOUT", 1_000_000_000_000_000); err != nil {
		return nil, err
	}
	if cfg.DemoCredit, err = getInt64("DEMO_CREDIT", 1_000_000_000); err != nil {
		return nil, err
	}
	if cfg.CrashEnabled, err = getBool("CRASH_ENABLED", true); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if len(c.JWTSecret) < MinJWTSecret {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecret)
	}
	if c.HouseEdge < 0 || c.HouseEdge >= 0.5 {
		return fmt.Errorf("HOUSE_EDGE must be in [0, 0.5), got %v", c.HouseEdge)
	}
	if c.MinBet < 1 {
		return fmt.Errorf("MIN_BET must be positive, got %d", c.MinBet)
	}
	if c.MaxPayout < c.MinBet {
		return fmt.Errorf("MAX_PAYOUT must be at least MIN_BET")
	}
	if c.DemoCredit < 0 {
		return fmt.Errorf("DEMO_CREDIT must not be negative")
	}
	return nil
}

// IsAdmin reports whether the wallet address is listed in ADMIN_WALLETS
func (c *Config) IsAdmin(address string) bool {
	return c.AdminWallets[strings.ToLower(address)]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseWallets(raw string) map[string]bool {
	wallets := make(map[string]bool)
	for _, w := range strings.Split(raw, ",") {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			wallets[w] = true
		}
	}
	return wallets
}
