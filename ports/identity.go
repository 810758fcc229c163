package ports

import (
	"context"

	"github.com/cybercongress/cyberauth/core"
)

// IdentityResolver maps a verified wallet address to a stable subject identifier.
// Any email in the returned identity is derived server side, never taken from the caller.
type IdentityResolver interface {
	ResolveSubject(ctx context.Context, walletAddress string) (core.Identity, error)
}
