package crypto

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateServerSeed(t *testing.T) {
	seed1, hash1, err := GenerateServerSeed()
	if err != nil {
		t.Fatalf("GenerateServerSeed failed: %v", err)
	}
	seed2, _, err := GenerateServerSeed()
	if err != nil {
		t.Fatalf("GenerateServerSeed failed: %v", err)
	}

	if len(seed1) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(seed1))
	}
	if seed1 == seed2 {
		t.Error("Two generated seeds are identical")
	}
	if !VerifySeed(seed1, hash1) {
		t.Error("Seed does not verify against its own hash")
	}
	if VerifySeed(seed2, hash1) {
		t.Error("Different seed verified against hash")
	}
}

func TestHashSeed(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashSeed("abc"); got != want {
		t.Errorf("HashSeed(abc) = %s, want %s", got, want)
	}
}

func TestValidateClientSeed(t *testing.T) {
	tests := []struct {
		name    string
		seed    string
		wantErr bool
	}{
		{"Simple", "lucky-seed", false},
		{"Empty", "", true},
		{"TooLong", strings.Repeat("a", 65), true},
		{"MaxLength", strings.Repeat("a", 64), false},
		{"Newline", "abc\n", true},
		{"Unicode", "séed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClientSeed(tt.seed)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateClientSeed(%q) error = %v, wantErr %v", tt.seed, err, tt.wantErr)
			}
		})
	}
}

func signPersonal(t *testing.T, message string) (string, string) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig[ethcrypto.RecoveryIDOffset] += 27
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	return address, hexutil.Encode(sig)
}

func TestVerifyWalletSignature(t *testing.T) {
	message := LoginMessage("0xabc", "challenge-1")
	address, sig := signPersonal(t, message)

	t.Run("Valid", func(t *testing.T) {
		if err := VerifyWalletSignature(address, message, sig); err != nil {
			t.Fatalf("Expected valid signature, got %v", err)
		}
	})

	t.Run("WrongMessage", func(t *testing.T) {
		err := VerifyWalletSignature(address, message+"x", sig)
		if !errors.Is(err, ErrSignerMismatch) {
			t.Fatalf("Expected ErrSignerMismatch, got %v", err)
		}
	})

	t.Run("OtherAddress", func(t *testing.T) {
		other, _ := signPersonal(t, message)
		err := VerifyWalletSignature(other, message, sig)
		if !errors.Is(err, ErrSignerMismatch) {
			t.Fatalf("Expected ErrSignerMismatch, got %v", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		err := VerifyWalletSignature(address, message, "0x1234")
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("Expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("BadAddress", func(t *testing.T) {
		err := VerifyWalletSignature("not-an-address", message, sig)
		if !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("Expected ErrInvalidAddress, got %v", err)
		}
	})
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	if err != nil {
		t.Fatalf("NormalizeAddress failed: %v", err)
	}
	if got != "0x52908400098527886e0f7030069857d2e4169ee7" {
		t.Errorf("Unexpected normalized address %s", got)
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123")

	token, expires, err := issuer.Issue("0xabc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Error("Expiry is not in the future")
	}

	sub, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sub != "0xabc" {
		t.Errorf("Expected subject 0xabc, got %s", sub)
	}

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenIssuer("another-secret-value")
		if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		late := NewTokenIssuer("0123456789abcdef0123")
		late.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
		if _, err := late.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Expected ErrInvalidToken for expired token, got %v", err)
		}
	})
}
