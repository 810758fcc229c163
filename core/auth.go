package core

import (
	"fmt"
	"time"
)

// Challenge represents a pending authentication attempt for a wallet
type Challenge struct {
	WalletAddress string    // Bech32 address of the wallet, unique key
	Nonce         string    // Random single-use value embedded in the message
	CreatedAt     time.Time // When the challenge was issued
}

// ChallengeIssue is what the client receives after requesting a challenge
type ChallengeIssue struct {
	Nonce   string
	Message string
}

// VerifyRequest carries a signed challenge submitted by the client
type VerifyRequest struct {
	WalletAddress string // Address the challenge was issued for
	PubKey        string // Base64 compressed secp256k1 public key
	Signature     string // Base64 64-byte r||s signature
	Nonce         string // Nonce returned by CreateChallenge
}

// Identity is a verified wallet bound to a stable subject
type Identity struct {
	SubjectID     string         // Stable identifier distinct from the wallet address
	WalletAddress string         // Wallet that proved key possession
	Email         string         // Optional
	Metadata      map[string]any // Optional extra user_metadata entries
}

// Session represents an issued session token
type Session struct {
	Token         string    // Signed JWT
	SubjectID     string    // sub claim
	WalletAddress string    // user_metadata.wallet_address
	Role          string    // role claim
	IssuedAt      time.Time // When the token was minted
	ExpiresAt     time.Time // When the token stops being valid
}

// ChallengeMessage builds the canonical text the wallet signs.
// It is always recomputed server-side from (wallet, nonce).
func ChallengeMessage(walletAddress, nonce string) string {
	return fmt.Sprintf("Sign this message to authenticate with %s.\nNonce: %s", walletAddress, nonce)
}
