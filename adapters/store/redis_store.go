package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

const (
	fieldNonce     = "nonce"
	fieldCreatedAt = "created_at" // unix microseconds, exact in Lua numbers
)

// consumeScript deletes the challenge only while it still carries the expected nonce
var consumeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "nonce") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// expireScript deletes the challenge only if it is still older than the cutoff,
// so a challenge re-issued between SCAN and delete survives.
var expireScript = redis.NewScript(`
local created = redis.call("HGET", KEYS[1], "created_at")
if created and tonumber(created) < tonumber(ARGV[1]) then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Redis implementation of the ChallengeStore interface.
// Each challenge is a hash under prefix+wallet with a native TTL as a backstop
// to the age filter.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis store. A zero ttl disables native key expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) ports.ChallengeStore {
	return &RedisStore{
		client: client,
		prefix: "cyberauth:challenge:",
		ttl:    ttl,
	}
}

// Upsert writes the challenge and its expiry in one transaction
func (s *RedisStore) Upsert(ctx context.Context, challenge core.Challenge) error {
	key := s.prefix + challenge.WalletAddress

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldNonce, challenge.Nonce,
			fieldCreatedAt, strconv.FormatInt(challenge.CreatedAt.UnixMicro(), 10),
		)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable("upsert challenge", err)
	}

	return nil
}

// FindFresh loads the wallet's challenge and filters it by age
func (s *RedisStore) FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error) {
	key := s.prefix + walletAddress

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return core.Challenge{}, unavailable("find challenge", err)
	}
	if len(fields) == 0 {
		return core.Challenge{}, core.ErrChallengeNotFound
	}

	micros, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return core.Challenge{}, unavailable("decode challenge", err)
	}

	challenge := core.Challenge{
		WalletAddress: walletAddress,
		Nonce:         fields[fieldNonce],
		CreatedAt:     time.UnixMicro(micros).UTC(),
	}
	if challenge.CreatedAt.Before(notBefore) {
		return core.Challenge{}, core.ErrChallengeNotFound
	}

	return challenge, nil
}

// Delete removes the challenge if it still carries nonce
func (s *RedisStore) Delete(ctx context.Context, walletAddress, nonce string) (bool, error) {
	deleted, err := consumeScript.Run(ctx, s.client, []string{s.prefix + walletAddress}, nonce).Int64()
	if err != nil {
		return false, unavailable("delete challenge", err)
	}

	return deleted > 0, nil
}

// DeleteOlderThan scans every challenge key and removes those created before cutoff
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	threshold := cutoff.UnixMicro()

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := expireScript.Run(ctx, s.client, []string{iter.Val()}, threshold).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return deleted, unavailable("cleanup challenges", err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, unavailable("cleanup challenges", err)
	}

	return deleted, nil
}
