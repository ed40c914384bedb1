package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"coinhype/config"
)

// GenerateServerSeed returns a fresh secret server seed and its public
// sha256 commitment
func GenerateServerSeed() (seed string, hash string, err error) {
	seed, err = randomHex(config.ServerSeedBytes)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return seed, HashSeed(seed), nil
}

// GenerateClientSeed returns a random client seed for players that did not
// choose one
func GenerateClientSeed() (string, error) {
	seed, err := randomHex(config.ClientSeedBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return seed, nil
}

// HashSeed returns hex(sha256(seed))
func HashSeed(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifySeed reports whether seed hashes to the committed hash
func VerifySeed(seed, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSeed(seed)), []byte(hash)) == 1
}

// ValidateClientSeed checks length and that only printable ASCII is used
func ValidateClientSeed(seed string) error {
	if len(seed) < config.MinClientSeedLen || len(seed) > config.MaxClientSeedLen {
		return fmt.Errorf("client seed must be %d-%d characters", config.MinClientSeedLen, config.MaxClientSeedLen)
	}
	for i := 0; i < len(seed); i++ {
		if seed[i] < 0x20 || seed[i] > 0x7e {
			return fmt.Errorf("client seed contains non-printable character at %d", i)
		}
	}
	return nil
}

// RandomToken returns n random bytes hex encoded
func RandomToken(n int) (string, error) {
	return randomHex(n)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
