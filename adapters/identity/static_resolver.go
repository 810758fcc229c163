package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cybercongress/cyberauth/core"
	"github.com/cybercongress/cyberauth/ports"
)

// DefaultNamespace seeds subject ids when no user store is configured
var DefaultNamespace = uuid.MustParse("6f0b3c8e-5d1a-4f7e-9c2b-3a4d5e6f7a8b")

// StaticResolver derives a name-based (v5) UUID from the wallet address.
// The same wallet always maps to the same subject.
type StaticResolver struct {
	namespace   uuid.UUID
	emailDomain string
}

// NewStaticResolver creates a resolver in the given namespace (uuid.Nil uses DefaultNamespace).
// With an empty emailDomain identities carry no email.
func NewStaticResolver(namespace uuid.UUID, emailDomain string) ports.IdentityResolver {
	if namespace == uuid.Nil {
		namespace = DefaultNamespace
	}
	return &StaticResolver{namespace: namespace, emailDomain: emailDomain}
}

// ResolveSubject returns the v5 UUID of walletAddress
func (r *StaticResolver) ResolveSubject(_ context.Context, walletAddress string) (core.Identity, error) {
	if walletAddress == "" {
		return core.Identity{}, fmt.Errorf("%w: wallet address is empty", core.ErrMalformedInput)
	}

	identity := core.Identity{
		SubjectID:     uuid.NewSHA1(r.namespace, []byte(walletAddress)).String(),
		WalletAddress: walletAddress,
	}
	if r.emailDomain != "" {
		identity.Email = WalletEmail(walletAddress, r.emailDomain)
	}
	return identity, nil
}
