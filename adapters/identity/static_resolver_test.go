package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercongress/cyberauth/core"
)

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(uuid.Nil, "")
	ctx := context.Background()

	first, err := r.ResolveSubject(ctx, "cyber1abc")
	require.NoError(t, err)
	assert.Equal(t, "cyber1abc", first.WalletAddress)
	assert.Empty(t, first.Email)

	again, err := r.ResolveSubject(ctx, "cyber1abc")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := r.ResolveSubject(ctx, "cyber1xyz")
	require.NoError(t, err)
	assert.NotEqual(t, first.SubjectID, other.SubjectID)

	parsed, err := uuid.Parse(first.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.NotEqual(t, "cyber1abc", first.SubjectID)

	otherNS, err := NewStaticResolver(uuid.New(), "").ResolveSubject(ctx, "cyber1abc")
	require.NoError(t, err)
	assert.NotEqual(t, first.SubjectID, otherNS.SubjectID)

	_, err = r.ResolveSubject(ctx, "")
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestStaticResolver_DerivesEmail(t *testing.T) {
	identity, err := NewStaticResolver(uuid.Nil, "example.org").ResolveSubject(context.Background(), "cyber1ABC")
	require.NoError(t, err)
	assert.Equal(t, "cyber1abc@example.org", identity.Email)
}
