package auth

import (
	"context"
	"net/http"
)

// SessionSource yields the Authorization header for outgoing requests.
type SessionSource interface {
	AuthHeader(ctx context.Context) http.Header
}

// Transport is an http.RoundTripper that adds the current session's
// Authorization header. Requests are sent unchanged when signed out, so the
// server decides how to answer anonymous calls.
type Transport struct {
	Source SessionSource

	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	header := t.Source.AuthHeader(req.Context())
	if header != nil {
		req = req.Clone(req.Context())
		for k, v := range header {
			req.Header[k] = v
		}
	}
	return t.base().RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// Client returns an http.Client using the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}
