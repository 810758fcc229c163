package store

import (
	"context"
	"sync"
	"time"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

// MemoryStore is an in-memory implementation of the ChallengeStore interface.
// It is meant for single-instance deployments and tests.
type MemoryStore struct {
	challenges map[string]core.Challenge
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.ChallengeStore {
	return &MemoryStore{
		challenges: make(map[string]core.Challenge),
	}
}

// Upsert replaces any challenge stored for the wallet
func (s *MemoryStore) Upsert(ctx context.Context, challenge core.Challenge) error {
	if err := ctx.Err(); err != nil {
		return unavailable("upsert challenge", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.WalletAddress] = challenge
	return nil
}

// FindFresh returns the wallet's challenge if it is not older than notBefore
func (s *MemoryStore) FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return core.Challenge{}, unavailable("find challenge", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, exists := s.challenges[walletAddress]
	if !exists || challenge.CreatedAt.Before(notBefore) {
		return core.Challenge{}, core.ErrChallengeNotFound
	}

	return challenge, nil
}

// Delete removes the wallet's challenge if it still carries nonce
func (s *MemoryStore) Delete(ctx context.Context, walletAddress, nonce string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("delete challenge", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, exists := s.challenges[walletAddress]
	if !exists || challenge.Nonce != nonce {
		return false, nil
	}

	delete(s.challenges, walletAddress)
	return true, nil
}

// DeleteOlderThan removes all challenges created before cutoff
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("cleanup challenges", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for wallet, challenge := range s.challenges {
		if challenge.CreatedAt.Before(cutoff) {
			delete(s.challenges, wallet)
			deleted++
		}
	}

	return deleted, nil
}
