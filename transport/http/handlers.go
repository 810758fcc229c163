package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/service"
)

// Context keys set by AuthMiddleware
const (
	ctxSubject = "subject"
	ctxSession = "session"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	ready       func(ctx context.Context) error
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// ChallengeRequest is the body of POST /auth/web3/challenge
type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// ChallengeResponse is returned for a new challenge
type ChallengeResponse struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// VerifyRequest is the body of POST /auth/web3/verify
type VerifyRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	PubKey        string `json:"pub_key"`
	Signature     string `json:"signature"`
	Nonce         string `json:"nonce" binding:"required"`
}

// VerifyResponse reports a verification outcome and, on success, the session token
type VerifyResponse struct {
	Success       bool   `json:"success"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Error         string `json:"error,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	TokenType     string `json:"token_type,omitempty"`
	ExpiresIn     int64  `json:"expires_in,omitempty"`
}

// CleanupResponse reports how many expired challenges were removed
type CleanupResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	issue, err := h.authService.Challenges().CreateChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMalformedInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		case errors.Is(err, core.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": core.PublicMessage(err)})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		}
		return
	}

	challengesIssuedTotal.Inc()
	c.JSON(http.StatusOK, ChallengeResponse{Nonce: issue.Nonce, Message: issue.Message})
}

// Verify checks the signed challenge and issues a session token.
// Rejected proofs answer 200 with success=false and a generic error.
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, VerifyResponse{Error: "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), core.VerifyRequest{
		WalletAddress: req.WalletAddress,
		PubKey:        req.PubKey,
		Signature:     req.Signature,
		Nonce:         req.Nonce,
	})
	if err != nil {
		verificationsTotal.WithLabelValues(string(core.KindOf(err))).Inc()

		statusCode := http.StatusOK
		switch {
		case errors.Is(err, core.ErrStoreUnavailable):
			statusCode = http.StatusServiceUnavailable
		case errors.Is(err, core.ErrMalformedInput):
			statusCode = http.StatusBadRequest
		case core.KindOf(err) == core.KindUnknown:
			statusCode = http.StatusInternalServerError
		}

		c.JSON(statusCode, VerifyResponse{Error: core.PublicMessage(err)})
		return
	}

	verificationsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, VerifyResponse{
		Success:       true,
		WalletAddress: result.WalletAddress,
		AccessToken:   result.AccessToken,
		TokenType:     result.TokenType,
		ExpiresIn:     result.ExpiresIn,
	})
}

// Cleanup removes expired challenges
func (h *AuthHandlers) Cleanup(c *gin.Context) {
	deleted, err := h.authService.Challenges().CleanupExpiredChallenges(c.Request.Context())
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrStoreUnavailable) {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, gin.H{"error": "Failed to cleanup challenges"})
		return
	}

	challengesCleanedTotal.Add(float64(deleted))
	c.JSON(http.StatusOK, CleanupResponse{DeletedCount: deleted})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	value, exists := c.Get(ctxSession)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}
	session := value.(*core.Session)

	c.JSON(http.StatusOK, gin.H{
		"sub":            c.GetString(ctxSubject),
		"wallet_address": session.WalletAddress,
		"role":           session.Role,
		"expires_at":     session.ExpiresAt.Unix(),
	})
}

// Health reports whether the service and its challenge store are reachable
func (h *AuthHandlers) Health(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
