package ports

import (
	"time"

	"github.com/cybercongress/cyberauth/core"
)

// Tokenizer converts between identities and signed session tokens
type Tokenizer interface {
	MintSessionToken(identity core.Identity) (string, time.Time, error)
	ParseSessionToken(token string) (*core.Session, error)
}
