package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/signet/internal/auth"
	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/ux"
)

const userInfoTimeout = 30 * time.Second

// maxUserInfoBytes bounds the userinfo response body.
const maxUserInfoBytes = 1 << 20

var userinfoCmd = &cobra.Command{
	Use:   "userinfo",
	Short: "Fetch your profile from the identity provider",
	Long: `Call the identity provider's userinfo endpoint with the current access
token and print the returned claims.

Exits with code 4 when not signed in.

Examples:
  signet userinfo
  signet userinfo --format json`,
	RunE: runUserInfo,
}

var userinfoFormat string

func init() {
	userinfoCmd.Flags().StringVarP(&userinfoFormat, "format", "f", "text", "output format: "+strings.Join(ux.Formats, ", "))
	rootCmd.AddCommand(userinfoCmd)
}

func runUserInfo(cmd *cobra.Command, args []string) error {
	formatter, err := ux.NewFormatter(userinfoFormat, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return err
	}

	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	if _, err := a.facade.RequireSession(cmd.Context()); err != nil {
		return err
	}

	client := (&auth.Transport{Source: a.facade}).Client()
	client.Timeout = userInfoTimeout

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, a.cfg.UserInfoURL(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.NewSignInProtocolError("userinfo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewSignInProtocolError(fmt.Sprintf("userinfo returned %s", resp.Status), nil)
	}

	var claims userInfoView
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&claims); err != nil {
		return errors.NewSignInProtocolError("userinfo response is not a JSON object", err)
	}
	a.logger.Debug("fetched userinfo", "claims", len(claims))
	return formatter.Format(claims)
}

// userInfoView is the claim set returned by the userinfo endpoint.
type userInfoView map[string]any

// RenderText implements ux.TextRenderer.
func (v userInfoView) RenderText(s ux.Styles) string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]ux.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, ux.Field{Label: name, Value: fmt.Sprint(v[name])})
	}
	return s.Fields(fields...)
}
