package tokenizer

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the Supabase-compatible claims of a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	Audience     Audience       `json:"aud,omitempty"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// GetAudience implements jwt.Claims
func (c SessionClaims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings(c.Audience), nil
}

// WalletAddress returns user_metadata.wallet_address, or "" if absent
func (c *SessionClaims) WalletAddress() string {
	wallet, _ := c.UserMetadata[MetadataWalletAddress].(string)
	return wallet
}

// Audience is the aud claim. A single audience is written as a plain string, as
// Supabase does; both the string and the array form are read.
type Audience []string

// MarshalJSON implements json.Marshaler
func (a Audience) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Audience) UnmarshalJSON(data []byte) error {
	var cs jwt.ClaimStrings
	if err := cs.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = Audience(cs)
	return nil
}
