package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

// PgxQuerier is the subset of *pgxpool.Pool the Postgres store needs
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the ChallengeStore interface on the auth_challenges table
type PostgresStore struct {
	pool PgxQuerier
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(pool PgxQuerier) ports.ChallengeStore {
	return &PostgresStore{pool: pool}
}

// Upsert replaces any challenge stored for the wallet in a single statement
func (s *PostgresStore) Upsert(ctx context.Context, challenge core.Challenge) error {
	query := `
		INSERT INTO auth_challenges (wallet_address, nonce, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE
		SET nonce = EXCLUDED.nonce, created_at = EXCLUDED.created_at`

	if _, err := s.pool.Exec(ctx, query,
		challenge.WalletAddress, challenge.Nonce, challenge.CreatedAt,
	); err != nil {
		return unavailable("upsert challenge", err)
	}

	return nil
}

// FindFresh returns the wallet's challenge if it was created at or after notBefore
func (s *PostgresStore) FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error) {
	query := `
		SELECT nonce, created_at FROM auth_challenges
		WHERE wallet_address = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1`

	challenge := core.Challenge{WalletAddress: walletAddress}
	err := s.pool.QueryRow(ctx, query, walletAddress, notBefore).Scan(&challenge.Nonce, &challenge.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Challenge{}, core.ErrChallengeNotFound
	}
	if err != nil {
		return core.Challenge{}, unavailable("find challenge", err)
	}

	return challenge, nil
}

// Delete removes the challenge if it still carries nonce
func (s *PostgresStore) Delete(ctx context.Context, walletAddress, nonce string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM auth_challenges WHERE wallet_address = $1 AND nonce = $2`,
		walletAddress, nonce,
	)
	if err != nil {
		return false, unavailable("delete challenge", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteOlderThan removes every challenge created before cutoff
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_challenges WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, unavailable("cleanup challenges", err)
	}

	return tag.RowsAffected(), nil
}
