package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

// runStoreContract exercises the behaviour every ChallengeStore backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) ports.ChallengeStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	longAgo := base.Add(-time.Hour)

	t.Run("missing challenge", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindFresh(ctx, "cyber1missing", longAgo)
		assert.ErrorIs(t, err, core.ErrChallengeNotFound)
	})

	t.Run("upsert then find", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: "n1", CreatedAt: base}))

		got, err := s.FindFresh(ctx, "cyber1a", longAgo)
		require.NoError(t, err)
		assert.Equal(t, "cyber1a", got.WalletAddress)
		assert.Equal(t, "n1", got.Nonce)
		assert.True(t, got.CreatedAt.Equal(base), "created_at %s != %s", got.CreatedAt, base)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: "n1", CreatedAt: base}))
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: "n2", CreatedAt: base.Add(time.Second)}))

		got, err := s.FindFresh(ctx, "cyber1a", longAgo)
		require.NoError(t, err)
		assert.Equal(t, "n2", got.Nonce)

		deleted, err := s.Delete(ctx, "cyber1a", "n1")
		require.NoError(t, err)
		assert.False(t, deleted, "superseded nonce must not consume the challenge")
	})

	t.Run("stale challenge is not fresh", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: "n1", CreatedAt: base}))

		_, err := s.FindFresh(ctx, "cyber1a", base.Add(time.Second))
		assert.ErrorIs(t, err, core.ErrChallengeNotFound)

		got, err := s.FindFresh(ctx, "cyber1a", base)
		require.NoError(t, err, "created exactly at the boundary is still fresh")
		assert.Equal(t, "n1", got.Nonce)
	})

	t.Run("delete is conditional on nonce", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: "n1", CreatedAt: base}))

		deleted, err := s.Delete(ctx, "cyber1a", "other")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = s.FindFresh(ctx, "cyber1a", longAgo)
		require.NoError(t, err)

		deleted, err = s.Delete(ctx, "cyber1a", "n1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = s.Delete(ctx, "cyber1a", "n1")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = s.FindFresh(ctx, "cyber1a", longAgo)
		assert.ErrorIs(t, err, core.ErrChallengeNotFound)
	})

	t.Run("delete older than", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1old", Nonce: "a", CreatedAt: base.Add(-20 * time.Minute)}))
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1older", Nonce: "b", CreatedAt: base.Add(-15 * time.Minute)}))
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1new", Nonce: "c", CreatedAt: base}))

		cutoff := base.Add(-10 * time.Minute)

		n, err := s.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		got, err := s.FindFresh(ctx, "cyber1new", longAgo)
		require.NoError(t, err)
		assert.Equal(t, "c", got.Nonce)

		_, err = s.FindFresh(ctx, "cyber1old", longAgo)
		assert.ErrorIs(t, err, core.ErrChallengeNotFound)
	})

	t.Run("concurrent deletes have one winner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: "n1", CreatedAt: base}))

		const workers = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				deleted, err := s.Delete(ctx, "cyber1a", "n1")
				assert.NoError(t, err)
				if deleted {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("concurrent upserts leave one row", func(t *testing.T) {
		s := newStore(t)

		const workers = 8
		nonces := make(map[string]bool, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			nonce := fmt.Sprintf("n%d", i)
			nonces[nonce] = true
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Upsert(ctx, core.Challenge{WalletAddress: "cyber1a", Nonce: nonce, CreatedAt: base}))
			}()
		}
		wg.Wait()

		got, err := s.FindFresh(ctx, "cyber1a", longAgo)
		require.NoError(t, err)
		assert.True(t, nonces[got.Nonce], "unexpected nonce %q", got.Nonce)

		n, err := s.DeleteOlderThan(ctx, base.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
