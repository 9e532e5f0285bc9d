package exitcode

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/signet/internal/auth"
	"github.com/felixgeelhaar/signet/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates missing or unreadable configuration
	ConfigError = 3

	// NotSignedIn indicates that a command needed a session and none exists
	NotSignedIn = 4

	// AuthError indicates the identity provider returned an invalid response
	AuthError = 5

	// ValidationError indicates an ID token that failed nonce or signature checks
	ValidationError = 6

	// StorageError indicates the secure session store failed
	StorageError = 7

	// Interrupted indicates the user cancelled the operation
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// Report writes err and the meaning of its exit code to w, and returns the code.
func Report(w io.Writer, err error) int {
	code := DetermineExitCode(err)
	if err == nil {
		return code
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	fmt.Fprintf(w, "(exit %d: %s)\n", code, GetExitCodeDescription(code))
	return code
}

// DetermineExitCode maps an error to an exit code. Signet errors are matched
// by code; cobra usage errors, which carry no type, by message.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeConfigMissing, errors.ErrCodeConfigUnreadable:
		return ConfigError
	case errors.ErrCodeSignInCancelled:
		return Interrupted
	case errors.ErrCodeSignInProtocol:
		return AuthError
	case errors.ErrCodeNonceValidation:
		return ValidationError
	case errors.ErrCodeStoreFailed:
		return StorageError
	}

	if stderrors.Is(err, auth.ErrNotSignedIn) {
		return NotSignedIn
	}

	errMsg := strings.ToLower(err.Error())
	for _, usage := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "required flag", "invalid argument", "accepts "} {
		if strings.Contains(errMsg, usage) {
			return UsageError
		}
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Configuration error"
	case NotSignedIn:
		return "Not signed in"
	case AuthError:
		return "Identity provider error"
	case ValidationError:
		return "ID token validation failed"
	case StorageError:
		return "Secure storage error"
	case Interrupted:
		return "Cancelled"
	default:
		return "Unknown error"
	}
}
