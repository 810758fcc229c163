// Package identity maps verified wallet addresses to stable subject identifiers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/internal/supabase"
	"github.com/cybercongress/cyberauth/ports"
)

const (
	profilesPath   = "/rest/v1/profiles"
	adminUsersPath = "/auth/v1/admin/users"

	// DefaultEmailDomain builds the account email of a wallet
	DefaultEmailDomain = "wallet.cyberauth.local"
)

type adminUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SupabaseResolver finds or creates a Supabase user for a wallet.
// It must be given a client holding the service role key.
type SupabaseResolver struct {
	client      *supabase.Client
	emailDomain string
	logger      *slog.Logger
}

// NewSupabaseResolver creates a resolver. An empty emailDomain uses DefaultEmailDomain.
func NewSupabaseResolver(client *supabase.Client, emailDomain string, logger *slog.Logger) ports.IdentityResolver {
	if emailDomain == "" {
		emailDomain = DefaultEmailDomain
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseResolver{
		client:      client,
		emailDomain: emailDomain,
		logger:      logger.With("component", "identity"),
	}
}

// WalletEmail is the account email of walletAddress under domain
func WalletEmail(walletAddress, domain string) string {
	return strings.ToLower(walletAddress) + "@" + domain
}

// ResolveSubject returns the user linked to the wallet, creating the user if needed
func (r *SupabaseResolver) ResolveSubject(ctx context.Context, walletAddress string) (core.Identity, error) {
	if walletAddress == "" {
		return core.Identity{}, fmt.Errorf("%w: wallet address is empty", core.ErrMalformedInput)
	}

	email := WalletEmail(walletAddress, r.emailDomain)
	identity := core.Identity{WalletAddress: walletAddress, Email: email}

	id, err := r.findProfile(ctx, walletAddress)
	if err != nil {
		return core.Identity{}, err
	}
	if id != "" {
		identity.SubjectID = id
		return identity, nil
	}

	id, err = r.createUser(ctx, walletAddress, email)
	if err == nil {
		r.logger.Info("created user for wallet", "wallet", walletAddress, "subject", id)
		identity.SubjectID = id
		return identity, nil
	}

	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && isEmailExists(apiErr) {
		// the address is derived from the wallet, so its owner is this wallet's earlier account
		id, err = r.linkExistingUser(ctx, walletAddress, email)
		if err != nil {
			return core.Identity{}, err
		}
		identity.SubjectID = id
		return identity, nil
	}

	return core.Identity{}, fmt.Errorf("%w: failed to create user: %v", core.ErrStoreUnavailable, err)
}

func (r *SupabaseResolver) findProfile(ctx context.Context, walletAddress string) (string, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	err := r.client.Do(ctx, supabase.Request{
		Method: http.MethodGet,
		Path:   profilesPath,
		Query: url.Values{
			"wallet_address": {"eq." + walletAddress},
			"select":         {"id"},
			"limit":          {"1"},
		},
	}, &rows)
	if err != nil {
		return "", fmt.Errorf("%w: failed to look up profile: %v", core.ErrStoreUnavailable, err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	return rows[0].ID, nil
}

func (r *SupabaseResolver) createUser(ctx context.Context, walletAddress, email string) (string, error) {
	name := walletAddress
	if len(name) > 8 {
		name = name[:8]
	}

	payload := map[string]any{
		"email":         email,
		"password":      uuid.NewString(),
		"email_confirm": true,
		"user_metadata": map[string]any{
			"wallet_address": walletAddress,
			"name":           name,
		},
	}

	// GoTrue returns either the user or {"user": {...}} depending on version
	var created struct {
		adminUser
		User *adminUser `json:"user"`
	}
	if err := r.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   adminUsersPath,
		Body:   payload,
	}, &created); err != nil {
		return "", err
	}

	id := created.ID
	if created.User != nil && created.User.ID != "" {
		id = created.User.ID
	}
	if id == "" {
		return "", errors.New("user created without id")
	}

	return id, nil
}

// linkExistingUser attaches the wallet to the user already registered under email
func (r *SupabaseResolver) linkExistingUser(ctx context.Context, walletAddress, email string) (string, error) {
	var list struct {
		Users []adminUser `json:"users"`
	}
	if err := r.client.Do(ctx, supabase.Request{
		Method: http.MethodGet,
		Path:   adminUsersPath,
		Query:  url.Values{"email": {email}},
	}, &list); err != nil {
		return "", fmt.Errorf("%w: failed to look up user by email: %v", core.ErrStoreUnavailable, err)
	}

	var user *adminUser
	for i := range list.Users {
		if strings.EqualFold(list.Users[i].Email, email) {
			user = &list.Users[i]
			break
		}
	}
	if user == nil {
		return "", fmt.Errorf("%w: email %s exists but its user could not be found", core.ErrStoreUnavailable, email)
	}

	metadata := make(map[string]any, len(user.UserMetadata)+1)
	for k, v := range user.UserMetadata {
		metadata[k] = v
	}
	metadata["wallet_address"] = walletAddress

	if err := r.client.Do(ctx, supabase.Request{
		Method: http.MethodPut,
		Path:   adminUsersPath + "/" + url.PathEscape(user.ID),
		Body:   map[string]any{"user_metadata": metadata},
	}, nil); err != nil {
		r.logger.Warn("failed to link wallet to user metadata", "subject", user.ID, "error", err)
	}

	if err := r.client.Do(ctx, supabase.Request{
		Method: http.MethodPatch,
		Path:   profilesPath,
		Query:  url.Values{"id": {"eq." + user.ID}},
		Prefer: "return=minimal",
		Body:   map[string]string{"wallet_address": walletAddress},
	}, nil); err != nil {
		r.logger.Warn("failed to link wallet to profile", "subject", user.ID, "error", err)
	}

	r.logger.Info("linked wallet to existing user", "wallet", walletAddress, "subject", user.ID)
	return user.ID, nil
}

func isEmailExists(err *supabase.APIError) bool {
	return err.Status == http.StatusUnprocessableEntity &&
		(err.Code == "email_exists" || strings.Contains(err.Message, "email_exists") ||
			strings.Contains(err.Message, "already been registered"))
}
