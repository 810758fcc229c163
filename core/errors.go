package core

import "errors"

var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrNonceMismatch     = errors.New("nonce mismatch")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrConfig            = errors.New("invalid configuration")
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Kind names one entry of the error taxonomy
type Kind string

const (
	KindNone             Kind = ""
	KindMalformedInput   Kind = "malformed_input"
	KindNotFound         Kind = "not_found"
	KindExpired          Kind = "expired"
	KindNonceMismatch    Kind = "nonce_mismatch"
	KindInvalidSignature Kind = "invalid_signature"
	KindStoreUnavailable Kind = "store_unavailable"
	KindConfig           Kind = "config"
	KindInvalidToken     Kind = "invalid_token"
	KindUnknown          Kind = "unknown"
)

// KindOf reduces an error to its taxonomy kind, for logs and metrics labels
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, ErrChallengeNotFound):
		return KindNotFound
	case errors.Is(err, ErrChallengeExpired):
		return KindExpired
	case errors.Is(err, ErrNonceMismatch):
		return KindNonceMismatch
	case errors.Is(err, ErrInvalidSignature):
		return KindInvalidSignature
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return KindInvalidToken
	default:
		return KindUnknown
	}
}

// PublicMessage returns the generic text shown to clients for a verification failure.
// Internal distinctions such as malformed vs wrong signature are not exposed.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindNotFound, KindExpired:
		return "Challenge not found or expired"
	case KindNonceMismatch:
		return "Invalid nonce"
	case KindInvalidSignature, KindMalformedInput:
		return "Invalid signature"
	case KindStoreUnavailable:
		return "Service temporarily unavailable"
	default:
		return "Authentication failed"
	}
}
