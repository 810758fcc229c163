package store

import (
	"fmt"

	"github.com/cybercongress/cyberauth/core"
)

// unavailable wraps a backend failure so callers can match core.ErrStoreUnavailable
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", core.ErrStoreUnavailable, op, err)
}
