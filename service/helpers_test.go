package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cybercongress/cyberauth/adapters/store"
	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/internal/cosmos"
	"github.com/cybercongress/cyberauth/internal/cosmos/cosmostest"
	"github.com/cybercongress/cyberauth/ports"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockChallengeStore is a mock implementation of ChallengeStore for testing.
type MockChallengeStore struct {
	mock.Mock
}

func (m *MockChallengeStore) Upsert(ctx context.Context, challenge core.Challenge) error {
	args := m.Called(ctx, challenge)
	return args.Error(0)
}

func (m *MockChallengeStore) FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error) {
	args := m.Called(ctx, walletAddress, notBefore)
	return args.Get(0).(core.Challenge), args.Error(1)
}

func (m *MockChallengeStore) Delete(ctx context.Context, walletAddress, nonce string) (bool, error) {
	args := m.Called(ctx, walletAddress, nonce)
	return args.Bool(0), args.Error(1)
}

func (m *MockChallengeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type fixture struct {
	clock   *fakeClock
	store   ports.ChallengeStore
	service *ChallengeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	s := store.NewMemoryStore()
	return &fixture{
		clock: clock,
		store: s,
		service: NewChallengeService(s, cosmos.NewVerifier(cosmos.DefaultHRP), ChallengeConfig{
			TTL: 10 * time.Minute,
			Now: clock.Now,
		}),
	}
}

// signedRequest issues a challenge for w and returns the request a wallet would submit
func (f *fixture) signedRequest(t *testing.T, w *cosmostest.Wallet) core.VerifyRequest {
	t.Helper()
	issue, err := f.service.CreateChallenge(context.Background(), w.Address)
	require.NoError(t, err)

	return core.VerifyRequest{
		WalletAddress: w.Address,
		PubKey:        w.PubKeyB64,
		Signature:     w.Sign(issue.Message),
		Nonce:         issue.Nonce,
	}
}
