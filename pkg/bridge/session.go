package bridge

import (
	"errors"
	"time"

	"github.com/telebridge/telebridge/pkg/telegram"
)

// SessionStatus tracks a session through the authorization code flow.
// Transitions are strictly pending -> coded -> redeemed; anything else is
// rejected by the store.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusCoded    SessionStatus = "coded"
	StatusRedeemed SessionStatus = "redeemed"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Session is the pending-authorization record created by the authorization
// endpoint and carried through code issuance and token exchange.
type Session struct {
	ID          string
	ClientID    string
	RedirectURI string
	// State is the opaque token supplied by the OAuth client, echoed back
	// verbatim on the redirect.
	State     string
	Scope     string
	CreatedAt time.Time
	Status    SessionStatus

	Code string
	User *telegram.UserRecord

	AccessToken    string
	TokenExpiresAt time.Time
}

// SessionStore holds the bridge's only shared mutable state. Every operation
// is atomic with respect to the others; reads return copies so callers never
// observe a half-updated session.
type SessionStore interface {
	SaveSession(session *Session) error
	GetSession(id string) (*Session, error)
	GetSessionByCode(code string) (*Session, error)
	GetSessionByToken(token string) (*Session, error)

	// AttachCode performs the pending -> coded transition, binding the
	// one-time code and the verified user record to the session.
	AttachCode(id, code string, user *telegram.UserRecord) error

	// RedeemCode performs the coded -> redeemed transition. The code is
	// tombstoned in the same critical section, so of two concurrent
	// redemptions exactly one succeeds; the loser gets ErrSessionNotFound.
	RedeemCode(code, token string, expiresAt time.Time) (*Session, error)

	DeleteSession(id string) error

	// EvictExpired removes every session older than maxAge, regardless of
	// state, and reports how many were removed.
	EvictExpired(maxAge time.Duration) int
}
