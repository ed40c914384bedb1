package config

import (
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/coinhype")
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		t.Setenv("HOUSE_EDGE", "")
		t.Setenv("REDIS_URL", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.HouseEdge != DefaultHouseEdge {
			t.Errorf("Expected house edge %v, got %v", DefaultHouseEdge, cfg.HouseEdge)
		}
		if cfg.RedisURL != "localhost:6379" {
			t.Errorf("Expected default redis url, got %s", cfg.RedisURL)
		}
		if !cfg.CrashEnabled {
			t.Error("Expected crash rounds enabled by default")
		}
	})

	t.Run("MissingDatabaseURL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		if _, err := Load(); err == nil {
			t.Fatal("Expected error without DATABASE_URL")
		}
	})

	t.Run("ShortSecret", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/coinhype")
		t.Setenv("JWT_SECRET", "short")
		if _, err := Load(); err == nil {
			t.Fatal("Expected error for short JWT_SECRET")
		}
	})

	t.Run("InvalidHouseEdge", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/coinhype")
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		t.Setenv("HOUSE_EDGE", "0.9")
		if _, err := Load(); err == nil {
			t.Fatal("Expected error for house edge 0.9")
		}
	})

	t.Run("AdminWallets", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/coinhype")
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		t.Setenv("HOUSE_EDGE", "")
		t.Setenv("ADMIN_WALLETS", " 0xAbC , 0xdef,")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !cfg.IsAdmin("0xabc") || !cfg.IsAdmin("0xDEF") {
			t.Errorf("Expected both wallets to be admins, got %v", cfg.AdminWallets)
		}
		if cfg.IsAdmin("0x123") {
			t.Error("Unexpected admin")
		}
	})
}
