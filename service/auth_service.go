package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

// TokenType is the OAuth token type reported with every session token
const TokenType = "bearer"

// LoginResult is a successful wallet login
type LoginResult struct {
	WalletAddress string
	SubjectID     string
	AccessToken   string
	TokenType     string
	ExpiresAt     time.Time
	ExpiresIn     int64 // seconds
}

// AuthService turns verified challenges into session tokens
type AuthService struct {
	challenges *ChallengeService
	resolver   ports.IdentityResolver
	tokenizer  ports.Tokenizer
	eventPub   ports.EventPublisher

	now    func() time.Time
	logger *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	challenges *ChallengeService,
	resolver ports.IdentityResolver,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		challenges: challenges,
		resolver:   resolver,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		now:        challenges.now,
		logger:     logger.With("component", "auth"),
	}
}

// Challenges returns the underlying challenge service
func (s *AuthService) Challenges() *ChallengeService {
	return s.challenges
}

// Login verifies a signed challenge, resolves the wallet's subject and mints a session token
func (s *AuthService) Login(ctx context.Context, req core.VerifyRequest) (*LoginResult, error) {
	wallet, err := s.challenges.VerifyChallenge(ctx, req)
	if err != nil {
		return nil, err
	}

	identity, err := s.resolver.ResolveSubject(ctx, wallet)
	if err != nil {
		s.logger.Error("failed to resolve subject", "wallet", wallet, "error", err)
		return nil, fmt.Errorf("failed to resolve subject: %w", err)
	}
	// the token always names the wallet that signed
	identity.WalletAddress = wallet
	subjectID := identity.SubjectID

	token, expiresAt, err := s.tokenizer.MintSessionToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	// Publishing is best effort; the session is already issued
	if s.eventPub != nil {
		if err := s.eventPub.PublishAuthenticated(ctx, wallet, subjectID); err != nil {
			s.logger.Warn("failed to publish authenticated event", "wallet", wallet, "error", err)
		}
	}

	return &LoginResult{
		WalletAddress: wallet,
		SubjectID:     subjectID,
		AccessToken:   token,
		TokenType:     TokenType,
		ExpiresAt:     expiresAt,
		ExpiresIn:     int64(math.Ceil(expiresAt.Sub(s.now()).Seconds())),
	}, nil
}

// ValidateAccessToken parses a session token issued by Login
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.ParseSessionToken(accessToken)
	if err != nil {
		return nil, err
	}

	return session, nil
}
