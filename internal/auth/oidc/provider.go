// Package oidc runs the OAuth2 authorization-code flow with PKCE against a
// hosted identity provider.
//
// The Authorizer implements auth.Authorizer. It never stores anything: the
// PKCE verifier and state live on the stack of one Authorize call and the
// caller binds the returned ID token to its nonce.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/signet/internal/auth"
	"github.com/felixgeelhaar/signet/internal/auth/useragent"
	"github.com/felixgeelhaar/signet/internal/config"
	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/log"
)

// DefaultExpiresIn is used when the token response omits expires_in.
const DefaultExpiresIn = 3600 * time.Second

// maxExpiresIn is the largest expires_in, in seconds, a time.Duration holds.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// UserAgent presents the authorization page and reports the redirect.
type UserAgent interface {
	Authenticate(ctx context.Context, authURL string) (useragent.Result, error)
}

// Options tunes an Authorizer. The zero value is usable.
type Options struct {
	// HTTPClient is used for the token exchange and key set fetches.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger *log.Logger
	Clock  func() time.Time
}

// Authorizer implements the PKCE authorization-code flow.
//
// Thread-safe: each Authorize call owns its verifier and state.
type Authorizer struct {
	oauth2Config *oauth2.Config
	userAgent    UserAgent
	verifier     *oidc.IDTokenVerifier
	httpClient   *http.Client
	logger       *log.Logger
	now          func() time.Time
}

// NewAuthorizer creates an Authorizer from validated configuration.
// It fails with a configuration error when the client id or identity
// provider domain is missing.
func NewAuthorizer(cfg *config.Config, ua UserAgent, opts Options) (*Authorizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ua == nil {
		return nil, errors.New(errors.ErrCodeConfigMissing, "authorizer requires a user agent")
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	a := &Authorizer{
		oauth2Config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL(),
			Scopes:      cfg.ScopeList(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL(),
				TokenURL:  cfg.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userAgent:  ua,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		now:        opts.Clock,
	}

	if cfg.VerifySignature {
		ctx := oidc.ClientContext(context.Background(), opts.HTTPClient)
		keySet := oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		a.verifier = oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
			ClientID: cfg.ClientID,
			Now:      opts.Clock,
		})
	}

	return a, nil
}

// AuthCodeURL builds the authorization URL for one attempt.
func (a *Authorizer) AuthCodeURL(state, nonce, verifier string) string {
	return a.oauth2Config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
}

// Authorize runs one attempt: present the authorization page, check the
// redirect, exchange the code.
func (a *Authorizer) Authorize(ctx context.Context, req auth.AuthorizationRequest) (*auth.TokenSet, error) {
	progress := req.Progress
	if progress == nil {
		progress = func(auth.State) {}
	}

	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return nil, errors.NewSignInProtocolError("could not generate state", err)
	}

	progress(auth.StateAwaitingUserAgent)
	res, err := a.userAgent.Authenticate(ctx, a.AuthCodeURL(state, req.Nonce, verifier))
	if err != nil {
		return nil, errors.NewSignInCancelledError(err.Error())
	}
	if !res.Succeeded() {
		a.logger.Info("user agent did not complete sign-in", "status", res.Status.String(), "detail", res.Detail)
		return nil, errors.NewSignInCancelledError(res.Detail)
	}

	code := res.Params.Get("code")
	if code == "" {
		return nil, errors.NewSignInProtocolError("redirect carried no authorization code", nil)
	}
	if res.Params.Get("state") != state {
		return nil, errors.NewSignInProtocolError("redirect state does not match the request", nil)
	}

	progress(auth.StateExchanging)
	return a.exchange(ctx, code, verifier)
}

// exchange redeems code for tokens. Cancellation stops at the user agent;
// a started exchange is allowed to finish.
func (a *Authorizer) exchange(ctx context.Context, code, verifier string) (*auth.TokenSet, error) {
	ctx = context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, a.httpClient)

	token, err := a.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.NewSignInProtocolError("token exchange failed", err)
	}

	if token.AccessToken == "" {
		return nil, errors.NewSignInProtocolError("token response has no access_token", nil)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, errors.NewSignInProtocolError("token response has no id_token", nil)
	}

	if a.verifier != nil {
		if _, err := a.verifier.Verify(ctx, idToken); err != nil {
			a.logger.WithError(err).Warn("ID token signature verification failed")
			return nil, errors.NewNonceValidationError("ID token signature or claims invalid")
		}
	}

	return &auth.TokenSet{
		AccessToken: token.AccessToken,
		IDToken:     idToken,
		ExpiresAt:   a.expiresAt(token),
	}, nil
}

// expiresAt honors expires_in, falling back to DefaultExpiresIn.
func (a *Authorizer) expiresAt(token *oauth2.Token) time.Time {
	if secs, ok := expiresIn(token.Extra("expires_in")); ok {
		return a.now().Add(time.Duration(secs) * time.Second)
	}
	a.logger.Warn("token response omitted expires_in; assuming default lifetime",
		"default_seconds", int(DefaultExpiresIn.Seconds()))
	return a.now().Add(DefaultExpiresIn)
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// expiresIn reads expires_in from a JSON number or a form-encoded string.
// Values beyond maxExpiresIn are clamped.
func expiresIn(v any) (int64, bool) {
	var secs int64
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		if t >= float64(maxExpiresIn) {
			return maxExpiresIn, true
		}
		secs = int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		secs = n
	default:
		return 0, false
	}
	return min(secs, maxExpiresIn), secs > 0
}
