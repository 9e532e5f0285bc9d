// Package useragent presents the identity provider's authorization page to
// the user and captures the redirect back to the application.
package useragent

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/felixgeelhaar/signet/internal/log"
)

// Status is the outcome of one user-agent session.
type Status int

const (
	// StatusSuccess means the provider redirected back with query parameters.
	StatusSuccess Status = iota
	// StatusCancelled means the user dismissed the page or the attempt was interrupted.
	StatusCancelled
	// StatusFailed means the page could not be shown or the provider returned an error.
	StatusFailed
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result is what the user agent observed.
type Result struct {
	Status Status

	// Params holds the redirect query on success.
	Params url.Values

	// Detail describes a cancellation or failure.
	Detail string
}

// Succeeded reports whether the redirect arrived without an error.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// Opener shows a URL to the user, normally in the system browser.
type Opener func(url string) error

// Loopback receives the authorization redirect on a local HTTP listener
// (RFC 8252 section 7.3). The listener lives only for one Authenticate call.
type Loopback struct {
	redirect *url.URL
	open     Opener
	prompt   io.Writer
	logger   *log.Logger
}

// Option configures a Loopback.
type Option func(*Loopback)

// WithOpener replaces the system browser.
func WithOpener(open Opener) Option {
	return func(l *Loopback) { l.open = open }
}

// WithPrompt prints the authorization URL to w so the user can open it by hand.
func WithPrompt(w io.Writer) Option {
	return func(l *Loopback) { l.prompt = w }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loopback) { l.logger = logger }
}

// NewLoopback creates a user agent for redirectURL, which must be an http
// URL on a loopback host.
func NewLoopback(redirectURL string, opts ...Option) (*Loopback, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect URL: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect URL %q: loopback redirect must use http", redirectURL)
	}
	if !isLoopback(u.Hostname()) {
		return nil, fmt.Errorf("redirect URL %q: host must be a loopback address", redirectURL)
	}

	l := &Loopback{redirect: u, open: OpenBrowser, logger: log.DefaultLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Authenticate shows authURL and waits for the redirect, ctx cancellation,
// or a failure. The returned error is always nil; failures are reported in
// Result so that callers see one outcome type.
func (l *Loopback) Authenticate(ctx context.Context, authURL string) (Result, error) {
	ln, err := net.Listen("tcp", l.redirect.Host)
	if err != nil {
		return Result{Status: StatusFailed, Detail: fmt.Sprintf("listen on %s: %v", l.redirect.Host, err)}, nil
	}

	results := make(chan Result, 1)
	var once sync.Once
	deliver := func(r Result) { once.Do(func() { results <- r }) }

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath(l.redirect), func(w http.ResponseWriter, r *http.Request) {
		res := resultFromQuery(r.URL.Query())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := donePage.Execute(w, res); err != nil {
			l.logger.WithError(err).Debug("failed to write callback page")
		}
		deliver(res)
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(Result{Status: StatusFailed, Detail: err.Error()})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if l.prompt != nil {
		fmt.Fprintf(l.prompt, "Open this URL to sign in:\n\n  %s\n\n", authURL)
	}
	if err := l.open(authURL); err != nil {
		if l.prompt == nil {
			return Result{Status: StatusFailed, Detail: fmt.Sprintf("open browser: %v", err)}, nil
		}
		l.logger.WithError(err).Warn("could not open browser; use the printed URL")
	}

	l.logger.Debug("waiting for authorization redirect", "listen", ln.Addr().String())
	select {
	case res := <-results:
		return res, nil
	case <-ctx.Done():
		return Result{Status: StatusCancelled, Detail: ctx.Err().Error()}, nil
	}
}

func resultFromQuery(q url.Values) Result {
	code := q.Get("error")
	switch {
	case code == "":
		return Result{Status: StatusSuccess, Params: q}
	case code == "access_denied":
		return Result{Status: StatusCancelled, Detail: describe(q)}
	default:
		return Result{Status: StatusFailed, Detail: describe(q)}
	}
}

func describe(q url.Values) string {
	if d := q.Get("error_description"); d != "" {
		return q.Get("error") + ": " + d
	}
	return q.Get("error")
}

func callbackPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var donePage = template.Must(template.New("done").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>signet</title></head>
<body style="font-family: sans-serif; margin: 4em;">
{{if .Succeeded}}<h2>Signed in</h2><p>You can close this window and return to the terminal.</p>
{{else}}<h2>Sign-in did not complete</h2><p>{{.Detail}}</p>{{end}}
</body></html>
`))

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
