// Package cosmos implements the Cosmos-style wallet primitives used to authenticate
// a wallet holder: address derivation from a compressed secp256k1 public key and
// verification of raw r||s signatures produced by wallets such as Keplr.
//
// Everything here is pure: no state, no I/O.
package cosmos

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // Required for Cosmos address derivation
)

const (
	// CompressedPubKeyLen is the length of a compressed secp256k1 public key
	CompressedPubKeyLen = 33

	// DefaultHRP is the human-readable part used by this deployment
	DefaultHRP = "cyber"
)

// ErrMalformedKey is returned when the input is not a valid compressed secp256k1 point
var ErrMalformedKey = errors.New("malformed public key")

// DeriveAddress derives the bech32 address of a compressed public key.
// Formula: bech32(hrp, RIPEMD160(SHA256(pubkey)))
func DeriveAddress(pubKey []byte, hrp string) (string, error) {
	if len(pubKey) != CompressedPubKeyLen || (pubKey[0] != 0x02 && pubKey[0] != 0x03) {
		return "", ErrMalformedKey
	}
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if hrp == "" {
		return "", fmt.Errorf("empty human-readable part")
	}

	data, err := bech32.ConvertBits(addressBytes(pubKey), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert address bits: %w", err)
	}

	addr, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", fmt.Errorf("encode bech32 address: %w", err)
	}

	return addr, nil
}

// addressBytes computes the 20-byte account address of a public key
func addressBytes(pubKey []byte) []byte {
	sha := sha256.Sum256(pubKey)
	rip := ripemd160.New()
	rip.Write(sha[:])
	return rip.Sum(nil)
}
