// Package auth implements client-side OIDC sign-in and session lifecycle.
//
// A Facade drives one PKCE authorization attempt per SignIn call, binds the
// returned ID token to the attempt with a nonce, persists the session in
// device-level secure storage and answers session queries from an injected
// cache. Claims are decoded without signature verification unless the
// Authorizer verifies them; treat them as presentation data.
package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/log"
	"github.com/felixgeelhaar/signet/internal/securestore"
)

// ErrNotSignedIn is returned by RequireSession when there is no valid session.
var ErrNotSignedIn = stderrors.New("not signed in")

// AuthorizationRequest carries the per-attempt inputs to an Authorizer.
type AuthorizationRequest struct {
	// Nonce must be sent as the "nonce" authorization parameter.
	Nonce string

	// Progress, when set, is called as the attempt moves through states.
	Progress func(State)
}

// Authorizer runs the PKCE authorization-code flow up to and including the
// token exchange. It returns SignInCancelled, SignInProtocol or
// NonceValidation class errors.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*TokenSet, error)
}

// Options configures a Facade.
type Options struct {
	Authorizer Authorizer
	Storage    securestore.Storage

	// Cache is shared by every Facade of one application root. A new cache is
	// created when nil.
	Cache *SessionCache

	// Mapper defaults to a new ClaimsMapper over Logger.
	Mapper *ClaimsMapper

	Logger   *log.Logger
	Clock    func() time.Time
	NonceTTL time.Duration

	// OnStateChange is called on every sign-in state transition.
	OnStateChange func(State)
}

// Facade is the entry point consumed by the rest of the application.
type Facade struct {
	authorizer Authorizer
	nonces     *NonceGuard
	store      *SessionStore
	cache      *SessionCache
	mapper     *ClaimsMapper
	logger     *log.Logger
	now        func() time.Time
	onState    func(State)
}

// New creates a Facade. Authorizer and Storage are required; there is no
// way to obtain a session without going through the Authorizer.
func New(opts Options) (*Facade, error) {
	if opts.Authorizer == nil {
		return nil, errors.New(errors.ErrCodeConfigMissing, "auth facade requires an authorizer")
	}
	if opts.Storage == nil {
		return nil, errors.New(errors.ErrCodeConfigMissing, "auth facade requires secure storage")
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = NewSessionCache()
	}
	if opts.Mapper == nil {
		opts.Mapper = NewClaimsMapper(opts.Logger)
	}

	return &Facade{
		authorizer: opts.Authorizer,
		nonces:     NewNonceGuard(opts.Storage, opts.NonceTTL, opts.Clock, opts.Logger),
		store:      NewSessionStore(opts.Storage, opts.Mapper, opts.Clock, opts.Logger),
		cache:      opts.Cache,
		mapper:     opts.Mapper,
		logger:     opts.Logger,
		now:        opts.Clock,
		onState:    opts.OnStateChange,
	}, nil
}

// SignIn runs one sign-in attempt and commits the resulting session.
//
// The pending nonce is discarded on every return path. A session is persisted
// only after the ID token's nonce matches; a mismatch also signs out any
// existing session.
func (f *Facade) SignIn(ctx context.Context) (*Session, error) {
	logger := f.logger.With("attempt_id", uuid.NewString())
	f.transition(StateRequesting)

	nonce, err := f.nonces.Issue(ctx)
	if err != nil {
		f.transition(StateIdle)
		logger.WithError(err).Error("sign-in could not start")
		return nil, err
	}
	defer f.nonces.Discard(context.WithoutCancel(ctx))

	tokens, err := f.authorizer.Authorize(ctx, AuthorizationRequest{
		Nonce:    nonce,
		Progress: f.transition,
	})
	if err != nil {
		return nil, f.fail(ctx, logger, err)
	}

	// Once the authorizer returns tokens the attempt runs to completion.
	ctx = context.WithoutCancel(ctx)

	f.transition(StateValidatingNonce)
	claims := DecodeClaims(tokens.IDToken)
	if err := f.nonces.Validate(ctx, claims); err != nil {
		return nil, f.fail(ctx, logger, err)
	}

	id := f.mapper.Map(claims)
	session := &Session{
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		Roles:          id.Roles,
		AccessToken:    tokens.AccessToken,
		IDToken:        tokens.IDToken,
		ExpiresAt:      tokens.ExpiresAt,
	}

	if err := f.store.Set(ctx, session); err != nil {
		if clearErr := f.store.Clear(ctx); clearErr != nil {
			logger.WithError(clearErr).Warn("failed to remove partially written session")
		}
		f.cache.Clear()
		return nil, f.fail(ctx, logger, err)
	}

	f.cache.Set(session.clone())
	f.transition(StateCommitted)
	logger.Info("signed in",
		"user_id", session.UserID,
		"organization_id", session.Organization(),
		"expires_at", session.ExpiresAt.UTC().Format(time.RFC3339))
	return session, nil
}

func (f *Facade) fail(ctx context.Context, logger *log.Logger, err error) error {
	if stderrors.Is(err, errors.ErrNonceValidation) {
		logger.WithError(err).Warn("ID token rejected; clearing existing session")
		f.signOut(context.WithoutCancel(ctx))
	} else {
		logger.WithError(err).Info("sign-in failed")
	}
	f.transition(StateIdle)
	return err
}

// SignOut clears the persisted and cached session. It never fails and is
// safe to call when signed out.
func (f *Facade) SignOut(ctx context.Context) {
	f.signOut(ctx)
	f.logger.Info("signed out")
}

func (f *Facade) signOut(ctx context.Context) {
	if err := f.store.Clear(ctx); err != nil {
		f.logger.WithError(err).Warn("failed to clear stored session")
	}
	f.cache.Clear()
}

// GetSession returns the current unexpired session or nil. The first call
// reads storage; later calls are answered from the cache.
func (f *Facade) GetSession(ctx context.Context) *Session {
	if s, loaded := f.cache.Get(); loaded {
		if s == nil {
			return nil
		}
		if s.IsExpired(f.now()) {
			f.signOut(ctx)
			return nil
		}
		return s.clone()
	}

	s, err := f.store.Load(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("failed to load stored session")
		return nil
	}
	f.cache.Set(s)
	return s.clone()
}

// AuthHeader returns the Authorization header for the current session, or
// nil when signed out.
func (f *Facade) AuthHeader(ctx context.Context) http.Header {
	s := f.GetSession(ctx)
	if s == nil {
		return nil
	}
	return s.AuthHeader()
}

// RequireSession returns the current session or ErrNotSignedIn.
func (f *Facade) RequireSession(ctx context.Context) (*Session, error) {
	if s := f.GetSession(ctx); s != nil {
		return s, nil
	}
	return nil, ErrNotSignedIn
}

func (f *Facade) transition(s State) {
	f.logger.Debug("sign-in state", "state", s.String())
	if f.onState != nil {
		f.onState(s)
	}
}
