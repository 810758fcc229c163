package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

const (
	DefaultIssuer   = "supabase"
	DefaultAudience = "authenticated"
	DefaultRole     = "authenticated"
	DefaultExpiry   = time.Hour
)

// user_metadata keys owned by the tokenizer
const (
	MetadataWalletAddress = "wallet_address"
	MetadataEmail         = "email"
)

// Config holds the session token parameters
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Role     string
	Expiry   time.Duration
	Now      func() time.Time // defaults to time.Now
}

// JWTTokenizer implements the Tokenizer interface with HS256 JWTs
type JWTTokenizer struct {
	secret   []byte
	issuer   string
	audience string
	role     string
	expiry   time.Duration
	now      func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer. An empty secret is a configuration error.
func NewJWTTokenizer(cfg Config) (ports.Tokenizer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is not set", core.ErrConfig)
	}
	if cfg.Expiry < 0 {
		return nil, fmt.Errorf("%w: jwt expiry must be positive", core.ErrConfig)
	}

	t := &JWTTokenizer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		role:     cfg.Role,
		expiry:   cfg.Expiry,
		now:      cfg.Now,
	}
	if t.issuer == "" {
		t.issuer = DefaultIssuer
	}
	if t.audience == "" {
		t.audience = DefaultAudience
	}
	if t.role == "" {
		t.role = DefaultRole
	}
	if t.expiry == 0 {
		t.expiry = DefaultExpiry
	}
	if t.now == nil {
		t.now = time.Now
	}

	return t, nil
}

// MintSessionToken signs a session token for a verified identity
func (j *JWTTokenizer) MintSessionToken(identity core.Identity) (string, time.Time, error) {
	if identity.SubjectID == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject id is empty", core.ErrMalformedInput)
	}

	issuedAt := j.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(j.expiry)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Audience:     Audience{j.audience},
		Role:         j.role,
		UserMetadata: userMetadata(identity),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// userMetadata merges extra metadata under the wallet and email keys.
// The wallet and email keys always win over entries of the same name.
func userMetadata(identity core.Identity) map[string]any {
	md := make(map[string]any, len(identity.Metadata)+2)
	for k, v := range identity.Metadata {
		md[k] = v
	}

	md[MetadataWalletAddress] = identity.WalletAddress
	if identity.Email != "" {
		md[MetadataEmail] = identity.Email
	} else {
		md[MetadataEmail] = nil
	}

	return md
}

// ParseSessionToken validates a session token and returns the session it describes
func (j *JWTTokenizer) ParseSessionToken(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithAudience(j.audience),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	session := &core.Session{
		Token:         tokenStr,
		SubjectID:     claims.Subject,
		WalletAddress: claims.WalletAddress(),
		Role:          claims.Role,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return session, nil
}
