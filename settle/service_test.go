package settle_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"coinhype/game"
	"coinhype/settle"
	"coinhype/settle/settletest"

	"pgregory.net/rapid"
)

const player = "0xplayer"

func newService(t *testing.T, opts settle.Options) (*settle.Service, *settletest.Store) {
	t.Helper()
	games, err := game.NewRegistry(0.01, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	store := settletest.NewStore()
	return settle.NewService(games, store, store, store, opts), store
}

func TestPlay(t *testing.T) {
	ctx := context.Background()

	t.Run("SettlesAndRecordsSeedData", func(t *testing.T) {
		svc, store := newService(t, settle.Options{MinBet: 1, MaxPayout: 1_000_000})
		store.SetBalance(player, 1000)

		res, err := svc.Play(ctx, settle.PlayRequest{UserID: player, Game: "coinflip", Amount: 100, Params: game.Params{"side": "heads"}})
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		r := res.Round
		if r.Nonce != 0 || r.ServerSeedHash == "" || r.ClientSeed == "" {
			t.Errorf("expected seed data on the round, got %+v", r)
		}
		if r.Payout != game.Payout(100, r.Multiplier) {
			t.Errorf("payout %d does not match multiplier %v", r.Payout, r.Multiplier)
		}
		balance, _ := svc.Balance(ctx, player)
		if balance != 1000-100+r.Payout || r.Balance != balance {
			t.Errorf("unexpected balance %d (round says %d)", balance, r.Balance)
		}
	})

	t.Run("OutcomeMatchesVerification", func(t *testing.T) {
		svc, store := newService(t, settle.Options{})
		store.SetBalance(player, 1000)
		params := game.Params{"target": 2.0}

		res, err := svc.Play(ctx, settle.PlayRequest{UserID: player, Game: "limbo", Amount: 10, Params: params})
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		revealed, _, err := svc.RotateSeed(ctx, player)
		if err != nil {
			t.Fatalf("RotateSeed failed: %v", err)
		}

		v, err := svc.Verify(settle.VerifyRequest{
			Game:           "limbo",
			ServerSeed:     revealed.ServerSeed,
			ServerSeedHash: res.Round.ServerSeedHash,
			ClientSeed:     res.Round.ClientSeed,
			Nonce:          res.Round.Nonce,
			Params:         params,
		})
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if !v.Valid || v.Outcome.Multiplier != res.Round.Multiplier {
			t.Errorf("verification mismatch: %+v vs round %+v", v, res.Round)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		svc, store := newService(t, settle.Options{MinBet: 10, MaxPayout: 5000})
		store.SetBalance(player, 100)

		tests := []struct {
			name string
			req  settle.PlayRequest
			want error
		}{
			{"UnknownGame", settle.PlayRequest{Game: "blackjack", Amount: 10}, game.ErrUnknownGame},
			{"InvalidParams", settle.PlayRequest{Game: "coinflip", Amount: 10, Params: game.Params{"side": "edge"}}, game.ErrInvalidParams},
			{"BetTooSmall", settle.PlayRequest{Game: "coinflip", Amount: 5, Params: game.Params{"side": "heads"}}, settle.ErrBetTooSmall},
			{"PayoutCap", settle.PlayRequest{Game: "limbo", Amount: 50, Params: game.Params{"target": 1000.0}}, settle.ErrPayoutCapExceeded},
			{"Insufficient", settle.PlayRequest{Game: "coinflip", Amount: 500, Params: game.Params{"side": "heads"}}, settle.ErrInsufficientBalance},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.req.UserID = player
				if _, err := svc.Play(ctx, tt.req); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}

		pair, _ := svc.SeedPair(ctx, player)
		if pair.Nonce != 0 {
			t.Errorf("rejected bets must not consume a nonce, got %d", pair.Nonce)
		}
	})

	t.Run("IdempotentReplay", func(t *testing.T) {
		svc, store := newService(t, settle.Options{})
		store.SetBalance(player, 1000)
		req := settle.PlayRequest{UserID: player, Game: "dice", Amount: 10, Params: game.Params{"target": 50.0}, IdempotencyKey: "abc"}

		first, err := svc.Play(ctx, req)
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		second, err := svc.Play(ctx, req)
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}
		if !second.Replayed || second.Round.ID != first.Round.ID {
			t.Errorf("expected replay of %s, got %+v", first.Round.ID, second)
		}
		balance, _ := svc.Balance(ctx, player)
		if balance != first.Round.Balance {
			t.Errorf("replay changed balance: %d vs %d", balance, first.Round.Balance)
		}
	})
}

func TestBalanceNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, store := newService(t, settle.Options{})
		start := rapid.Int64Range(0, 10_000).Draw(rt, "start")
		store.SetBalance(player, start)

		bets := rapid.SliceOfN(rapid.Int64Range(1, 5_000), 1, 30).Draw(rt, "bets")
		for _, amount := range bets {
			_, err := svc.Play(context.Background(), settle.PlayRequest{
				UserID: player, Game: "dice", Amount: amount,
				Params: game.Params{"target": 50.0},
			})
			if err != nil && !errors.Is(err, settle.ErrInsufficientBalance) {
				rt.Fatalf("unexpected error: %v", err)
			}
			balance, _ := svc.Balance(context.Background(), player)
			if balance < 0 {
				rt.Fatalf("balance went negative: %d", balance)
			}
		}
	})
}

func TestSeeds(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, settle.Options{})
	store.SetBalance(player, 1000)

	pair, err := svc.SeedPair(ctx, player)
	if err != nil {
		t.Fatalf("SeedPair failed: %v", err)
	}
	if pair.ServerSeed != "" {
		t.Fatal("active server seed must not be exposed")
	}

	for i := 0; i < 3; i++ {
		svc.Play(ctx, settle.PlayRequest{UserID: player, Game: "coinflip", Amount: 1, Params: game.Params{"side": "tails"}})
	}

	t.Run("SetClientSeed", func(t *testing.T) {
		revealed, next, err := svc.SetClientSeed(ctx, player, "lucky")
		if err != nil {
			t.Fatalf("SetClientSeed failed: %v", err)
		}
		if revealed.ServerSeedHash != pair.ServerSeedHash || revealed.Nonce != 3 {
			t.Errorf("expected the used pair revealed after 3 rounds, got %+v", revealed)
		}
		if next.ServerSeed != "" || next.ClientSeed != "lucky" || next.Nonce != 0 {
			t.Errorf("unexpected next pair: %+v", next)
		}
	})

	t.Run("RejectsBadClientSeed", func(t *testing.T) {
		if _, _, err := svc.SetClientSeed(ctx, player, ""); !errors.Is(err, game.ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
		if _, _, err := svc.SetClientSeed(ctx, player, "tab\there"); !errors.Is(err, game.ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
	})

	t.Run("RotateKeepsClientSeed", func(t *testing.T) {
		_, next, err := svc.RotateSeed(ctx, player)
		if err != nil {
			t.Fatalf("RotateSeed failed: %v", err)
		}
		if next.ClientSeed != "lucky" {
			t.Errorf("expected client seed kept, got %s", next.ClientSeed)
		}
		revealed, _ := svc.RevealedSeeds(ctx, player)
		if len(revealed) != 2 || revealed[0].ClientSeed != "lucky" {
			t.Errorf("expected 2 revealed pairs newest first, got %d", len(revealed))
		}
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("FromCache", func(t *testing.T) {
		svc, store := newService(t, settle.Options{})
		store.SetBalance(player, 1000)
		for i := 0; i < 60; i++ {
			svc.Play(ctx, settle.PlayRequest{UserID: player, Game: "coinflip", Amount: 1, Params: game.Params{"side": "heads"}})
		}
		entries, err := svc.History(ctx, player)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 50 || entries[0].Nonce != 59 {
			t.Errorf("expected newest 50 entries, got %d starting at nonce %d", len(entries), entries[0].Nonce)
		}
	})

	t.Run("FallsBackToLedger", func(t *testing.T) {
		svc, store := newService(t, settle.Options{})
		store.SetBalance(player, 1000)
		store.HistoryErr = errors.New("redis down")
		for i := 0; i < 3; i++ {
			if _, err := svc.Play(ctx, settle.PlayRequest{UserID: player, Game: "coinflip", Amount: 1, Params: game.Params{"side": "heads"}}); err != nil {
				t.Fatalf("Play must not fail when the cache is down: %v", err)
			}
		}
		entries, err := svc.History(ctx, player)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 3 || entries[0].Nonce != 2 {
			t.Errorf("expected 3 entries from the ledger, got %+v", entries)
		}
	})
}

func TestClaimDemo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, settle.Options{DemoCredit: 500})

	balance, err := svc.ClaimDemo(ctx, player)
	if err != nil {
		t.Fatalf("ClaimDemo failed: %v", err)
	}
	if balance != 500 {
		t.Errorf("expected 500, got %d", balance)
	}
	if _, err := svc.ClaimDemo(ctx, player); !errors.Is(err, settle.ErrDemoCooldown) {
		t.Errorf("expected ErrDemoCooldown, got %v", err)
	}
}

// flakyLedger fails the next Credit call
type flakyLedger struct {
	*settletest.Store
	failNext error
}

func (l *flakyLedger) Credit(ctx context.Context, userID string, amount int64, reason, reference string) (int64, error) {
	if err := l.failNext; err != nil {
		l.failNext = nil
		return 0, err
	}
	return l.Store.Credit(ctx, userID, amount, reason, reference)
}

func TestClaimDemoCreditFails(t *testing.T) {
	ctx := context.Background()
	games, err := game.NewRegistry(0.01, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	store := settletest.NewStore()
	ledger := &flakyLedger{Store: store, failNext: errors.New("db down")}
	svc := settle.NewService(games, ledger, store, store, settle.Options{DemoCredit: 500})

	if _, err := svc.ClaimDemo(ctx, player); err == nil || errors.Is(err, settle.ErrDemoCooldown) {
		t.Fatalf("expected the ledger error, got %v", err)
	}
	balance, err := svc.ClaimDemo(ctx, player)
	if err != nil {
		t.Fatalf("expected retry to succeed after a failed credit, got %v", err)
	}
	if balance != 500 {
		t.Errorf("expected 500, got %d", balance)
	}

	// A credit already recorded for the window keeps the claim
	ledger.failNext = fmt.Errorf("%w: demo", settle.ErrDuplicateRequest)
	store.ReleaseDemo(ctx, player)
	if _, err := svc.ClaimDemo(ctx, player); !errors.Is(err, settle.ErrDemoCooldown) {
		t.Errorf("expected ErrDemoCooldown for duplicate credit, got %v", err)
	}
	if ok, _ := store.ClaimDemo(ctx, player); ok {
		t.Error("expected the claim to be kept after a duplicate credit")
	}
}

func TestVerifyHashMismatch(t *testing.T) {
	svc, _ := newService(t, settle.Options{})
	v, err := svc.Verify(settle.VerifyRequest{
		Game:           "coinflip",
		ServerSeed:     "server",
		ServerSeedHash: "deadbeef",
		ClientSeed:     "client",
		Params:         game.Params{"side": "heads"},
	})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.Valid || v.HashValid == nil || *v.HashValid {
		t.Errorf("expected invalid hash, got %+v", v)
	}
}
