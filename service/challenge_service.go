package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

const (
	DefaultChallengeTTL = 10 * time.Minute
	DefaultStoreTimeout = 5 * time.Second

	NonceLength = 32

	// maxWalletAddressLen bounds the store key; bech32 strings are at most 90 chars
	maxWalletAddressLen = 90
)

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ChallengeConfig holds the challenge lifecycle parameters
type ChallengeConfig struct {
	TTL          time.Duration
	StoreTimeout time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// ChallengeService issues, verifies and expires wallet challenges
type ChallengeService struct {
	store    ports.ChallengeStore
	verifier ports.WalletVerifier

	ttl          time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewChallengeService creates a new challenge service
func NewChallengeService(store ports.ChallengeStore, verifier ports.WalletVerifier, cfg ChallengeConfig) *ChallengeService {
	s := &ChallengeService{
		store:        store,
		verifier:     verifier,
		ttl:          cfg.TTL,
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultChallengeTTL
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "challenge")
	return s
}

// TTL returns how long an issued challenge stays valid
func (s *ChallengeService) TTL() time.Duration {
	return s.ttl
}

// CreateChallenge generates a nonce for the wallet and replaces any pending challenge
func (s *ChallengeService) CreateChallenge(ctx context.Context, walletAddress string) (*core.ChallengeIssue, error) {
	if err := validateWalletAddress(walletAddress); err != nil {
		return nil, err
	}

	nonce, err := GenerateNonce(NonceLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	challenge := core.Challenge{
		WalletAddress: walletAddress,
		Nonce:         nonce,
		CreatedAt:     s.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Upsert(ctx, challenge); err != nil {
		s.logger.Error("failed to store challenge", "wallet", walletAddress, "error", err)
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	s.logger.Debug("challenge issued", "wallet", walletAddress)

	return &core.ChallengeIssue{
		Nonce:   nonce,
		Message: core.ChallengeMessage(walletAddress, nonce),
	}, nil
}

// VerifyChallenge checks a signed challenge and consumes it on success.
// It returns the authenticated wallet address.
func (s *ChallengeService) VerifyChallenge(ctx context.Context, req core.VerifyRequest) (string, error) {
	wallet, err := s.verifyChallenge(ctx, req)
	if err != nil {
		s.logger.Info("challenge verification failed",
			"wallet", req.WalletAddress,
			"kind", core.KindOf(err),
		)
		return "", err
	}

	s.logger.Info("challenge verified", "wallet", wallet)
	return wallet, nil
}

func (s *ChallengeService) verifyChallenge(ctx context.Context, req core.VerifyRequest) (string, error) {
	if err := validateWalletAddress(req.WalletAddress); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	notBefore := s.now().Add(-s.ttl)

	stored, err := s.store.FindFresh(ctx, req.WalletAddress, notBefore)
	if err != nil {
		return "", err
	}
	if stored.CreatedAt.Before(notBefore) {
		return "", core.ErrChallengeExpired
	}

	if subtle.ConstantTimeCompare([]byte(stored.Nonce), []byte(req.Nonce)) != 1 {
		return "", core.ErrNonceMismatch
	}

	// An empty signature would reduce the check to address derivation only
	if req.PubKey == "" || req.Signature == "" {
		return "", core.ErrInvalidSignature
	}

	message := core.ChallengeMessage(req.WalletAddress, stored.Nonce)
	if !s.verifier.VerifyWalletAuth(req.WalletAddress, req.PubKey, message, req.Signature) {
		return "", core.ErrInvalidSignature
	}

	consumed, err := s.store.Delete(ctx, req.WalletAddress, stored.Nonce)
	if err != nil {
		return "", err
	}
	if !consumed {
		// Lost a race with another verification of the same challenge
		return "", core.ErrChallengeNotFound
	}

	return req.WalletAddress, nil
}

// CleanupExpiredChallenges removes challenges older than the TTL and returns how many were removed
func (s *ChallengeService) CleanupExpiredChallenges(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	deleted, err := s.store.DeleteOlderThan(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.logger.Error("failed to clean up challenges", "error", err)
		return 0, fmt.Errorf("failed to clean up challenges: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("expired challenges removed", "count", deleted)
	}
	return deleted, nil
}

// GenerateNonce returns n characters drawn uniformly from [A-Za-z0-9] using crypto/rand
func GenerateNonce(n int) (string, error) {
	max := big.NewInt(int64(len(nonceAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = nonceAlphabet[idx.Int64()]
	}
	return string(out), nil
}

func validateWalletAddress(walletAddress string) error {
	if walletAddress == "" {
		return fmt.Errorf("%w: wallet address is required", core.ErrMalformedInput)
	}
	if len(walletAddress) > maxWalletAddressLen {
		return fmt.Errorf("%w: wallet address is too long", core.ErrMalformedInput)
	}
	return nil
}
