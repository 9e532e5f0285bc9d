package auth

import (
	"net/http"
	"time"
)

// Secure storage keys. The layout is shared with other clients of the same
// store, so the names are part of the persisted format.
const (
	KeyAccessToken = "auth.access_token"
	KeyIDToken     = "auth.id_token"
	KeyExpiresAt   = "auth.expires_at"
	KeyNonce       = "auth.nonce"
)

// Session represents the signed-in user.
//
// UserID, OrganizationID and Roles are derived from IDToken and are never
// persisted on their own. Tokens are excluded from JSON so a session can be
// printed without leaking them.
type Session struct {
	// UserID is the "sub" claim, or "unknown" when absent.
	UserID string `json:"user_id" yaml:"user_id"`

	// OrganizationID is nil when the token carries no organization.
	OrganizationID *string `json:"organization_id" yaml:"organization_id"`

	// Roles keeps the order of the identity provider's group list.
	Roles []string `json:"roles" yaml:"roles"`

	AccessToken string `json:"-" yaml:"-"`

	// IDToken is a JWT whose signature is not verified unless the
	// authorizer was configured to do so.
	IDToken string `json:"-" yaml:"-"`

	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

// IsExpired reports whether the session is expired at now. A session whose
// expiry equals now is expired.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Organization returns the organization id or "".
func (s *Session) Organization() string {
	if s.OrganizationID == nil {
		return ""
	}
	return *s.OrganizationID
}

// AuthHeader returns the Authorization header for the session's access token.
func (s *Session) AuthHeader() http.Header {
	return http.Header{"Authorization": []string{"Bearer " + s.AccessToken}}
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.OrganizationID != nil {
		org := *s.OrganizationID
		c.OrganizationID = &org
	}
	c.Roles = append([]string{}, s.Roles...)
	return &c
}

// TokenSet is what a successful code exchange yields.
type TokenSet struct {
	AccessToken string
	IDToken     string
	ExpiresAt   time.Time
}

// State is a step of the sign-in state machine.
type State int

// Sign-in states. Every failure returns to StateIdle.
const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingUserAgent
	StateExchanging
	StateValidatingNonce
	StateCommitted
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateAwaitingUserAgent:
		return "awaiting_user_agent"
	case StateExchanging:
		return "exchanging"
	case StateValidatingNonce:
		return "validating_nonce"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}
