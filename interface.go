// Package cyberauth is a Go client for the wallet authentication API.
//
// A login is two round trips: Challenge returns the message the wallet must sign,
// and Verify exchanges the signature for a session token.
package cyberauth

import "context"

// Client represents the public interface for interacting with the auth service
type Client interface {
	// Challenge issues a fresh challenge for walletAddress, replacing any pending one
	Challenge(ctx context.Context, walletAddress string) (*Challenge, error)

	// Verify submits a signed challenge and returns the issued session
	Verify(ctx context.Context, req VerifyRequest) (*Session, error)

	// Cleanup removes expired challenges and returns how many were deleted
	Cleanup(ctx context.Context) (int64, error)

	// Me returns the identity carried by an access token
	Me(ctx context.Context, accessToken string) (*Profile, error)
}

// Challenge is the message a wallet must sign to log in
type Challenge struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// VerifyRequest carries a wallet's proof of key ownership
type VerifyRequest struct {
	WalletAddress string `json:"wallet_address"`
	PubKey        string `json:"pub_key"`
	Signature     string `json:"signature"`
	Nonce         string `json:"nonce"`
}

// Session is the token issued after a successful verification
type Session struct {
	WalletAddress string `json:"wallet_address"`
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int64  `json:"expires_in"`
}

// Profile describes the subject of an access token
type Profile struct {
	Subject       string `json:"sub"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
	ExpiresAt     int64  `json:"expires_at"`
}
