package cosmos

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// RawSignatureLen is the length of an r||s signature (32 bytes each)
const RawSignatureLen = 64

const (
	derSequenceTag = 0x30
	derIntegerTag  = 0x02
)

// EncodeDERSignature re-encodes a raw r||s signature into the ASN.1 DER form
// SEQUENCE{INTEGER r, INTEGER s} expected by standard ECDSA verifiers.
func EncodeDERSignature(raw []byte) ([]byte, error) {
	if len(raw) != RawSignatureLen {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", RawSignatureLen, len(raw))
	}

	r := encodeDERInteger(raw[:32])
	s := encodeDERInteger(raw[32:])

	der := make([]byte, 0, 2+len(r)+len(s))
	der = append(der, derSequenceTag, byte(len(r)+len(s)))
	der = append(der, r...)
	der = append(der, s...)
	return der, nil
}

// encodeDERInteger encodes an unsigned big-endian integer as a DER INTEGER.
// Leading zero bytes are stripped and a single 0x00 is prepended when the
// high bit is set so the value stays positive.
func encodeDERInteger(v []byte) []byte {
	v = bytes.TrimLeft(v, "\x00")
	if len(v) == 0 {
		v = []byte{0x00}
	}
	if v[0]&0x80 != 0 {
		v = append([]byte{0x00}, v...)
	}

	out := make([]byte, 0, 2+len(v))
	out = append(out, derIntegerTag, byte(len(v)))
	return append(out, v...)
}

// VerifySignature checks a raw r||s signature over SHA-256(message).
// Every failure (malformed key, wrong length, bad encoding, mismatch) yields false.
func VerifySignature(pubKey []byte, message string, sig []byte) bool {
	return verify(pubKey, message, sig, false)
}

func verify(pubKey []byte, message string, sig []byte, rejectHighS bool) bool {
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	der, err := EncodeDERSignature(sig)
	if err != nil {
		return false
	}

	parsed, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}

	if rejectHighS && isHighS(sig[32:]) {
		return false
	}

	hash := sha256.Sum256([]byte(message))
	return parsed.Verify(hash[:], key)
}

// isHighS reports whether s lies in the upper half of the curve order
func isHighS(s []byte) bool {
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(s); overflow {
		return true
	}
	return scalar.IsOverHalfOrder()
}

// Verifier checks wallet ownership for a single address scheme
type Verifier struct {
	hrp         string
	rejectHighS bool
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithRejectHighS makes the verifier reject malleable high-S signatures
func WithRejectHighS(reject bool) VerifierOption {
	return func(v *Verifier) {
		v.rejectHighS = reject
	}
}

// NewVerifier creates a verifier for addresses with the given human-readable part
func NewVerifier(hrp string, opts ...VerifierOption) *Verifier {
	if hrp == "" {
		hrp = DefaultHRP
	}
	v := &Verifier{hrp: hrp}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HRP returns the human-readable part addresses are derived with
func (v *Verifier) HRP() string {
	return v.hrp
}

// DeriveAddress derives the address of a compressed public key under the verifier's hrp
func (v *Verifier) DeriveAddress(pubKey []byte) (string, error) {
	return DeriveAddress(pubKey, v.hrp)
}

// VerifyWalletAuth checks that pubKeyB64 derives to address and, when both message
// and signatureB64 are supplied, that the signature over message verifies.
func (v *Verifier) VerifyWalletAuth(address, pubKeyB64, message, signatureB64 string) bool {
	pubKey, err := base64.StdEncoding.DecodeString(pubKeyB64)
	if err != nil {
		return false
	}

	derived, err := DeriveAddress(pubKey, v.hrp)
	if err != nil || derived != address {
		return false
	}

	if message == "" || signatureB64 == "" {
		return true
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	return verify(pubKey, message, sig, v.rejectHighS)
}
