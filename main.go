package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coinhype/api"
	"coinhype/config"
	"coinhype/crypto"
	"coinhype/db"
	"coinhype/game"
	"coinhype/settle"
	"coinhype/ws"

	"golang.org/x/sync/errgroup"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// The ledger lives in Postgres, so there is nothing to serve without it
	if err := db.InitPostgres(cfg.DatabaseURL); err != nil {
		log.Fatalf("❌ PostgreSQL initialization failed: %v", err)
	}
	defer db.ClosePostgres()

	if err := db.InitRedis(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Printf("⚠️  Warning: Redis initialization failed: %v", err)
		log.Println("   History falls back to Postgres; login and demo credit will not work")
	}
	defer db.CloseRedis()

	games, err := game.NewRegistry(cfg.HouseEdge, nil)
	if err != nil {
		log.Fatalf("❌ Failed to build game registry: %v", err)
	}
	service := settle.NewService(games, db.Ledger{}, db.Ledger{}, db.Cache{}, settle.Options{
		MinBet:     cfg.MinBet,
		MaxPayout:  cfg.MaxPayout,
		DemoCredit: cfg.DemoCredit,
	})
	tokens := crypto.NewTokenIssuer(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	var engine *ws.CrashEngine
	if cfg.CrashEnabled {
		engine = ws.NewCrashEngine(hub, db.Ledger{}, db.CrashStore{}, cfg.HouseEdge, cfg.MinBet)
		engine.LoadHistory(ctx)
	}

	server := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: api.NewRouter(api.Deps{
			Service: service,
			Store:   db.Store{},
			Tokens:  tokens,
			Config:  cfg,
			Crash:   engine,
			WS:      ws.NewServer(hub, engine, tokens),
		}),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx.Done())
		return nil
	})
	if engine != nil {
		g.Go(func() error { return engine.Run(ctx) })
	}
	g.Go(func() error {
		log.Printf("🚀 Server starting on %s", cfg.ServerAddr)
		log.Printf("   Games: %v (house edge %.2f%%)", games.Names(), cfg.HouseEdge*100)
		log.Println("   ws://" + cfg.ServerAddr + "/ws - subscribe to 'crash' for live rounds")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("❌ Server error:", err)
	}
	log.Println("👋 Server stopped")
}
