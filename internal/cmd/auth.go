package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/signet/internal/auth"
	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/ux"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the identity provider",
	Long: `Open the identity provider's sign-in page in your browser and wait for
the redirect back to signet. On success the session is stored in encrypted
device storage; any previous session is replaced.

Press Ctrl+C to abandon the attempt.

Examples:
  signet login
  SIGNET_CLIENT_ID=abc SIGNET_IDP_DOMAIN=auth.example.com signet login`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and erase the stored session",
	Long: `Erase the stored session from device storage. Safe to run when not
signed in. The identity provider session is not revoked.

With --forget-device the device master key is removed from the OS credential
store (or its key file) as well, so nothing stored by signet on this device
can be decrypted afterwards.

Examples:
  signet logout
  signet logout --forget-device`,
	RunE: runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Long: `Show the signed-in user, organization, roles and expiry.

Exits with code 4 when not signed in.

Examples:
  signet status
  signet status --format json`,
	RunE: runStatus,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the access token",
	Long: `Print the access token of the current session to stdout so other tools
can use it.

Examples:
  curl -H "Authorization: Bearer $(signet token)" https://api.example.com/me
  curl -H "$(signet token --header)" https://api.example.com/me`,
	RunE: runToken,
}

var (
	statusFormat       string
	tokenHeader        bool
	logoutForgetDevice bool
)

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "output format: "+strings.Join(ux.Formats, ", "))
	tokenCmd.Flags().BoolVar(&tokenHeader, "header", false, "print a complete Authorization header line")
	logoutCmd.Flags().BoolVar(&logoutForgetDevice, "forget-device", false, "also remove the device master key")

	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd, tokenCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	styles := ux.NewStyles(false)
	out := cmd.ErrOrStderr()

	a, err := newApp(cmd, func(s auth.State) {
		switch s {
		case auth.StateAwaitingUserAgent:
			fmt.Fprintln(out, styles.Muted.Render("Waiting for sign-in in your browser..."))
		case auth.StateExchanging:
			fmt.Fprintln(out, styles.Muted.Render("Completing sign-in..."))
		}
	})
	if err != nil {
		return err
	}

	session, err := a.facade.SignIn(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), styles.Success.Render("✓ Signed in"))
	fmt.Fprintln(cmd.OutOrStdout(), newSessionView(session, time.Now()).RenderText(styles))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}

	a.facade.SignOut(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")

	if !logoutForgetDevice {
		return nil
	}
	switch {
	case a.keys == nil:
		fmt.Fprintln(cmd.OutOrStdout(), "Store is passphrase protected; no device key to remove.")
	case !a.keys.Exists():
		fmt.Fprintln(cmd.OutOrStdout(), "No device key stored.")
	default:
		if err := a.keys.Delete(); err != nil {
			return errors.NewStoreError("delete device key", err)
		}
		a.logger.Info("device master key removed")
		fmt.Fprintln(cmd.OutOrStdout(), "Device key removed.")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := ux.NewFormatter(statusFormat, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return err
	}

	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}

	session, err := a.facade.RequireSession(cmd.Context())
	if err != nil {
		if statusFormat == "text" || statusFormat == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run 'signet login'.")
		} else if fmtErr := formatter.Format(sessionView{SignedIn: false}); fmtErr != nil {
			return fmtErr
		}
		return err
	}

	return formatter.Format(newSessionView(session, time.Now()))
}

func runToken(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}

	header := a.facade.AuthHeader(cmd.Context())
	if header == nil {
		return fmt.Errorf("%w: run 'signet login'", auth.ErrNotSignedIn)
	}

	value := header.Get("Authorization")
	if tokenHeader {
		fmt.Fprintf(cmd.OutOrStdout(), "Authorization: %s\n", value)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimPrefix(value, "Bearer "))
	return nil
}

// sessionView is the printable form of a session. Tokens are never included.
type sessionView struct {
	SignedIn       bool      `json:"signed_in" yaml:"signed_in"`
	UserID         string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	Roles          []string  `json:"roles,omitempty" yaml:"roles,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitzero" yaml:"expires_at,omitempty"`
	ExpiresIn      string    `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
}

func newSessionView(s *auth.Session, now time.Time) sessionView {
	return sessionView{
		SignedIn:       true,
		UserID:         s.UserID,
		OrganizationID: s.OrganizationID,
		Roles:          s.Roles,
		ExpiresAt:      s.ExpiresAt.UTC(),
		ExpiresIn:      s.ExpiresAt.Sub(now).Round(time.Second).String(),
	}
}

// RenderText implements ux.TextRenderer.
func (v sessionView) RenderText(s ux.Styles) string {
	if !v.SignedIn {
		return "Not signed in."
	}

	org := s.Muted.Render("none")
	if v.OrganizationID != nil {
		org = *v.OrganizationID
	}
	roles := s.Muted.Render("none")
	if len(v.Roles) > 0 {
		roles = strings.Join(v.Roles, ", ")
	}

	return s.Fields(
		ux.Field{Label: "User", Value: v.UserID},
		ux.Field{Label: "Organization", Value: org},
		ux.Field{Label: "Roles", Value: roles},
		ux.Field{Label: "Expires", Value: fmt.Sprintf("%s (in %s)", v.ExpiresAt.Local().Format(time.RFC1123), v.ExpiresIn)},
	)
}
