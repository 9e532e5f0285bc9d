package exitcode

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/signet/internal/auth"
	"github.com/felixgeelhaar/signet/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"missing config", errors.NewConfigMissingError("client_id", "SIGNET_CLIENT_ID"), ConfigError},
		{"unreadable config", errors.New(errors.ErrCodeConfigUnreadable, "bad yaml"), ConfigError},
		{"cancelled sign-in", errors.NewSignInCancelledError("access_denied"), Interrupted},
		{"protocol error", errors.NewSignInProtocolError("missing code", nil), AuthError},
		{"nonce validation", errors.NewNonceValidationError("mismatch"), ValidationError},
		{"storage failure", errors.NewStoreError("write", stderrors.New("disk full")), StorageError},
		{"wrapped signet error", fmt.Errorf("login: %w", errors.NewNonceValidationError("x")), ValidationError},
		{"not signed in", fmt.Errorf("%w: run 'signet login'", auth.ErrNotSignedIn), NotSignedIn},
		{"unknown command", stderrors.New(`unknown command "foo" for "signet"`), UsageError},
		{"unknown flag", stderrors.New("unknown flag: --bogus"), UsageError},
		{"message mentioning token is not an auth error", stderrors.New("token file is a directory"), GeneralError},
		{"plain error", stderrors.New("something broke"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	code := Report(&buf, fmt.Errorf("login: %w", errors.NewSignInProtocolError("missing code", nil)))

	if code != AuthError {
		t.Errorf("Report() = %d, want %d", code, AuthError)
	}
	out := buf.String()
	for _, want := range []string{"Error: login: [SIGNIN-002]", "(exit 5: Identity provider error)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q should contain %q", out, want)
		}
	}

	buf.Reset()
	if code := Report(&buf, nil); code != Success || buf.Len() != 0 {
		t.Errorf("Report(nil) = %d with output %q, want %d and no output", code, buf.String(), Success)
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{UsageError, "Usage error (invalid flags or arguments)"},
		{ConfigError, "Configuration error"},
		{NotSignedIn, "Not signed in"},
		{AuthError, "Identity provider error"},
		{ValidationError, "ID token validation failed"},
		{StorageError, "Secure storage error"},
		{Interrupted, "Cancelled"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := GetExitCodeDescription(tt.code); got != tt.want {
				t.Errorf("GetExitCodeDescription(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
