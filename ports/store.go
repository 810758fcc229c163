package ports

import (
	"context"
	"time"

	"github.com/cybercongress/cyberauth/core"
)

// ChallengeStore persists at most one outstanding challenge per wallet address
type ChallengeStore interface {
	// Upsert atomically replaces any existing challenge for the wallet
	Upsert(ctx context.Context, challenge core.Challenge) error
	// FindFresh returns the wallet's challenge if it was created at or after notBefore.
	// Missing and stale challenges both yield core.ErrChallengeNotFound.
	FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error)
	// Delete removes the challenge only if it still carries nonce.
	// It reports whether a row was removed, so exactly one concurrent caller wins.
	Delete(ctx context.Context, walletAddress, nonce string) (bool, error)
	// DeleteOlderThan removes every challenge created before cutoff and returns the count
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
