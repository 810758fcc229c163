package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cybercongress/cyberauth/adapters/identity"
	"github.com/cybercongress/cyberauth/adapters/tokenizer"
	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/internal/cosmos"
	"github.com/cybercongress/cyberauth/internal/cosmos/cosmostest"
	"github.com/cybercongress/cyberauth/ports"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishAuthenticated(ctx context.Context, walletAddress, subjectID string) error {
	args := m.Called(ctx, walletAddress, subjectID)
	return args.Error(0)
}

type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) ResolveSubject(ctx context.Context, walletAddress string) (core.Identity, error) {
	args := m.Called(ctx, walletAddress)
	return args.Get(0).(core.Identity), args.Error(1)
}

func newAuthFixture(t *testing.T, resolver ports.IdentityResolver, pub ports.EventPublisher) (*fixture, *AuthService, ports.Tokenizer) {
	t.Helper()
	f := newFixture(t)

	tok, err := tokenizer.NewJWTTokenizer(tokenizer.Config{Secret: "secret", Now: f.clock.Now})
	require.NoError(t, err)

	return f, NewAuthService(f.service, resolver, tok, pub, nil), tok
}

func TestLogin(t *testing.T) {
	pub := new(MockEventPublisher)
	resolver := identity.NewStaticResolver(uuid.Nil, "example.org")
	f, auth, tok := newAuthFixture(t, resolver, pub)

	w := cosmostest.MustNewWallet(cosmos.DefaultHRP)
	resolved, err := resolver.ResolveSubject(context.Background(), w.Address)
	require.NoError(t, err)
	subject := resolved.SubjectID
	pub.On("PublishAuthenticated", mock.Anything, w.Address, subject).Return(nil).Once()

	result, err := auth.Login(context.Background(), f.signedRequest(t, w))
	require.NoError(t, err)

	assert.Equal(t, w.Address, result.WalletAddress)
	assert.Equal(t, subject, result.SubjectID)
	assert.NotEqual(t, w.Address, result.SubjectID)
	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	assert.Equal(t, epoch.Add(time.Hour), result.ExpiresAt)

	session, err := tok.ParseSessionToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, subject, session.SubjectID)
	assert.Equal(t, w.Address, session.WalletAddress)
	assert.Equal(t, w.Address+"@example.org", tokenMetadata(t, result.AccessToken)[tokenizer.MetadataEmail])

	validated, err := auth.ValidateAccessToken(context.Background(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.SubjectID, validated.SubjectID)

	pub.AssertExpectations(t)
}

func TestLogin_PublishFailureIsNotFatal(t *testing.T) {
	pub := new(MockEventPublisher)
	pub.On("PublishAuthenticated", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f, auth, _ := newAuthFixture(t, identity.NewStaticResolver(uuid.Nil, ""), pub)

	result, err := auth.Login(context.Background(), f.signedRequest(t, cosmostest.MustNewWallet(cosmos.DefaultHRP)))
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
}

func TestLogin_InvalidSignatureIssuesNoToken(t *testing.T) {
	pub := new(MockEventPublisher)
	resolver := new(MockIdentityResolver)
	f, auth, _ := newAuthFixture(t, resolver, pub)

	req := f.signedRequest(t, cosmostest.MustNewWallet(cosmos.DefaultHRP))
	req.Signature = cosmostest.MustNewWallet(cosmos.DefaultHRP).Sign("something else")

	_, err := auth.Login(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	resolver.AssertNotCalled(t, "ResolveSubject", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishAuthenticated", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_ResolverFailure(t *testing.T) {
	resolver := new(MockIdentityResolver)
	resolver.On("ResolveSubject", mock.Anything, mock.Anything).
		Return(core.Identity{}, core.ErrStoreUnavailable)
	f, auth, _ := newAuthFixture(t, resolver, nil)

	_, err := auth.Login(context.Background(), f.signedRequest(t, cosmostest.MustNewWallet(cosmos.DefaultHRP)))
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	resolver.AssertExpectations(t)
}

func TestLogin_TokenNamesSigningWallet(t *testing.T) {
	resolver := new(MockIdentityResolver)
	resolver.On("ResolveSubject", mock.Anything, mock.Anything).Return(core.Identity{
		SubjectID:     "user-1",
		WalletAddress: "cyber1someoneelse",
		Email:         "user-1@example.org",
	}, nil)
	f, auth, tok := newAuthFixture(t, resolver, nil)

	w := cosmostest.MustNewWallet(cosmos.DefaultHRP)
	result, err := auth.Login(context.Background(), f.signedRequest(t, w))
	require.NoError(t, err)

	session, err := tok.ParseSessionToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.SubjectID)
	assert.Equal(t, w.Address, session.WalletAddress)
	assert.Equal(t, "user-1@example.org", tokenMetadata(t, result.AccessToken)[tokenizer.MetadataEmail])
	resolver.AssertCalled(t, "ResolveSubject", mock.Anything, w.Address)
}

// tokenMetadata returns the user_metadata claim of an issued token
func tokenMetadata(t *testing.T, token string) map[string]any {
	t.Helper()
	var claims tokenizer.SessionClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)
	return claims.UserMetadata
}

func TestValidateAccessToken_Expired(t *testing.T) {
	f, auth, _ := newAuthFixture(t, identity.NewStaticResolver(uuid.Nil, ""), nil)

	result, err := auth.Login(context.Background(), f.signedRequest(t, cosmostest.MustNewWallet(cosmos.DefaultHRP)))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = auth.ValidateAccessToken(context.Background(), result.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}
