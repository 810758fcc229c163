// Package cosmostest provides throwaway secp256k1 wallets that sign messages the
// way Keplr does, for exercising the authentication flow in tests.
package cosmostest

import (
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/cybercongress/cyberauth/internal/cosmos"
)

// Wallet is a secp256k1 key pair with its derived bech32 address
type Wallet struct {
	PrivKey   *btcec.PrivateKey
	PubKey    []byte // 33-byte compressed
	Address   string
	PubKeyB64 string
}

// NewWallet generates a random wallet for the given human-readable part
func NewWallet(hrp string) (*Wallet, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return FromPrivateKey(privKey, hrp)
}

// MustNewWallet is NewWallet that panics on error
func MustNewWallet(hrp string) *Wallet {
	w, err := NewWallet(hrp)
	if err != nil {
		panic(err)
	}
	return w
}

// FromPrivateKey builds a wallet around an existing private key
func FromPrivateKey(privKey *btcec.PrivateKey, hrp string) (*Wallet, error) {
	pubKey := privKey.PubKey().SerializeCompressed()
	addr, err := cosmos.DeriveAddress(pubKey, hrp)
	if err != nil {
		return nil, err
	}
	return &Wallet{
		PrivKey:   privKey,
		PubKey:    pubKey,
		Address:   addr,
		PubKeyB64: base64.StdEncoding.EncodeToString(pubKey),
	}, nil
}

// SignRaw signs SHA-256(message) and returns the 64-byte r||s signature (low-S)
func (w *Wallet) SignRaw(message string) []byte {
	hash := sha256.Sum256([]byte(message))
	sig := ecdsa.Sign(w.PrivKey, hash[:])

	var rs struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(sig.Serialize(), &rs); err != nil {
		panic(fmt.Sprintf("cosmostest: unparseable DER signature: %v", err))
	}

	raw := make([]byte, cosmos.RawSignatureLen)
	rs.R.FillBytes(raw[:32])
	rs.S.FillBytes(raw[32:])
	return raw
}

// Sign returns the base64 r||s signature of message, as a wallet would submit it
func (w *Wallet) Sign(message string) string {
	return base64.StdEncoding.EncodeToString(w.SignRaw(message))
}

// HighS converts a low-S raw signature into its malleable high-S twin (s' = N - s)
func HighS(raw []byte) []byte {
	s := new(big.Int).SetBytes(raw[32:])
	s.Sub(btcec.S256().N, s)

	out := make([]byte, cosmos.RawSignatureLen)
	copy(out[:32], raw[:32])
	s.FillBytes(out[32:])
	return out
}
