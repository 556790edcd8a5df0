package authflowrepo

import (
	"errors"
	"time"
)

// MaxAge bounds how long an OIDC round trip may take.
const MaxAge = 10 * time.Minute

var ErrStateNotFound = errors.New("auth flow state not found")

// AuthFlowState is what the login redirect remembers until the callback.
type AuthFlowState struct {
	Flow         string // Which token the callback issues: "session" or "journey"
	CodeVerifier string // PKCE verifier
	Nonce        string
	ReturnURL    string // Local path to land on after login, may be empty
	CreatedAt    time.Time
}

// Expired reports whether the state is older than MaxAge at now.
func (s *AuthFlowState) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > MaxAge
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error

	// Take returns and removes the state in one step so a callback can
	// only be redeemed once.
	Take(state string) (*AuthFlowState, error)
}
