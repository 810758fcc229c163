package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cybercongress/cyberauth/core"
)

// SQLiteStore implements the ChallengeStore interface using SQLite.
// created_at is stored as unix nanoseconds so age comparisons stay numeric.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema exists.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes writers, which keeps compare-and-delete atomic
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth_challenges (
			wallet_address TEXT PRIMARY KEY,
			nonce          TEXT NOT NULL,
			created_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_auth_challenges_created_at
			ON auth_challenges(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is still reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Upsert replaces any challenge stored for the wallet
func (s *SQLiteStore) Upsert(ctx context.Context, challenge core.Challenge) error {
	query := `
		INSERT INTO auth_challenges (wallet_address, nonce, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (wallet_address) DO UPDATE
		SET nonce = excluded.nonce, created_at = excluded.created_at`

	if _, err := s.db.ExecContext(ctx, query,
		challenge.WalletAddress, challenge.Nonce, challenge.CreatedAt.UnixNano(),
	); err != nil {
		return unavailable("upsert challenge", err)
	}

	return nil
}

// FindFresh returns the wallet's challenge if it was created at or after notBefore
func (s *SQLiteStore) FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error) {
	query := `
		SELECT nonce, created_at FROM auth_challenges
		WHERE wallet_address = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`

	var (
		nonce     string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, walletAddress, notBefore.UnixNano()).Scan(&nonce, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Challenge{}, core.ErrChallengeNotFound
	}
	if err != nil {
		return core.Challenge{}, unavailable("find challenge", err)
	}

	return core.Challenge{
		WalletAddress: walletAddress,
		Nonce:         nonce,
		CreatedAt:     time.Unix(0, createdAt).UTC(),
	}, nil
}

// Delete removes the challenge if it still carries nonce
func (s *SQLiteStore) Delete(ctx context.Context, walletAddress, nonce string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_challenges WHERE wallet_address = ? AND nonce = ?`,
		walletAddress, nonce,
	)
	if err != nil {
		return false, unavailable("delete challenge", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("delete challenge", err)
	}

	return n > 0, nil
}

// DeleteOlderThan removes every challenge created before cutoff
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_challenges WHERE created_at < ?`,
		cutoff.UnixNano(),
	)
	if err != nil {
		return 0, unavailable("cleanup challenges", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("cleanup challenges", err)
	}

	if n > 0 {
		s.logger.Debug("expired challenges removed", "count", n)
	}
	return n, nil
}
