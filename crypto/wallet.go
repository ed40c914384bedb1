package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignerMismatch   = errors.New("signature does not match address")
)

// NormalizeAddress validates a hex wallet address and returns it lowercased
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// LoginMessage is the text a wallet signs to log in
func LoginMessage(address, challenge string) string {
	return fmt.Sprintf("coinhype login\naddress: %s\nnonce: %s", strings.ToLower(address), challenge)
}

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message
func RecoverSigner(message, signatureHex string) (string, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil || len(sig) != ethcrypto.SignatureLength {
		return "", ErrInvalidSignature
	}

	// Wallets return V as 27/28
	sig = append([]byte(nil), sig...)
	if sig[ethcrypto.RecoveryIDOffset] >= 27 {
		sig[ethcrypto.RecoveryIDOffset] -= 27
	}

	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return strings.ToLower(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}

// VerifyWalletSignature checks that address signed message
func VerifyWalletSignature(address, message, signatureHex string) error {
	want, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	got, err := RecoverSigner(message, signatureHex)
	if err != nil {
		return err
	}
	if got != want {
		return ErrSignerMismatch
	}
	return nil
}
