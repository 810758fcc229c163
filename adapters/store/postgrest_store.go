package store

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/internal/supabase"
	"github.com/cybercongress/cyberauth/ports"
)

const challengesPath = "/rest/v1/auth_challenges"

type challengeRow struct {
	WalletAddress string    `json:"wallet_address"`
	Nonce         string    `json:"nonce"`
	CreatedAt     time.Time `json:"created_at"`
}

// PostgRESTStore implements the ChallengeStore interface over the Supabase REST API
type PostgRESTStore struct {
	client *supabase.Client
}

// NewPostgRESTStore creates a store backed by the auth_challenges table of a Supabase project
func NewPostgRESTStore(client *supabase.Client) ports.ChallengeStore {
	return &PostgRESTStore{client: client}
}

// Upsert merges the challenge on the wallet_address key in one request
func (s *PostgRESTStore) Upsert(ctx context.Context, challenge core.Challenge) error {
	err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   challengesPath,
		Query:  url.Values{"on_conflict": {"wallet_address"}},
		Prefer: "resolution=merge-duplicates,return=minimal",
		Body: challengeRow{
			WalletAddress: challenge.WalletAddress,
			Nonce:         challenge.Nonce,
			CreatedAt:     challenge.CreatedAt.UTC(),
		},
	}, nil)
	if err != nil {
		return unavailable("upsert challenge", err)
	}

	return nil
}

// FindFresh returns the wallet's challenge if it was created at or after notBefore
func (s *PostgRESTStore) FindFresh(ctx context.Context, walletAddress string, notBefore time.Time) (core.Challenge, error) {
	var rows []challengeRow
	err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodGet,
		Path:   challengesPath,
		Query: url.Values{
			"wallet_address": {"eq." + walletAddress},
			"created_at":     {"gte." + formatTime(notBefore)},
			"select":         {"wallet_address,nonce,created_at"},
			"order":          {"created_at.desc"},
			"limit":          {"1"},
		},
	}, &rows)
	if err != nil {
		return core.Challenge{}, unavailable("find challenge", err)
	}
	if len(rows) == 0 {
		return core.Challenge{}, core.ErrChallengeNotFound
	}

	return core.Challenge{
		WalletAddress: rows[0].WalletAddress,
		Nonce:         rows[0].Nonce,
		CreatedAt:     rows[0].CreatedAt,
	}, nil
}

// Delete removes the challenge if it still carries nonce
func (s *PostgRESTStore) Delete(ctx context.Context, walletAddress, nonce string) (bool, error) {
	var rows []challengeRow
	err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodDelete,
		Path:   challengesPath,
		Query: url.Values{
			"wallet_address": {"eq." + walletAddress},
			"nonce":          {"eq." + nonce},
		},
		Prefer: "return=representation",
	}, &rows)
	if err != nil {
		return false, unavailable("delete challenge", err)
	}

	return len(rows) > 0, nil
}

// DeleteOlderThan removes every challenge created before cutoff.
// The count comes from the returned representation.
func (s *PostgRESTStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var rows []challengeRow
	err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodDelete,
		Path:   challengesPath,
		Query: url.Values{
			"created_at": {"lt." + formatTime(cutoff)},
			"select":     {"wallet_address"},
		},
		Prefer: "return=representation",
	}, &rows)
	if err != nil {
		return 0, unavailable("cleanup challenges", err)
	}

	return int64(len(rows)), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
