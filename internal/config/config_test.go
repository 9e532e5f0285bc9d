package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/signet/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "client_id: abc\nidp_domain: auth.example.com\n")

	cfg, err := Load(LoadOptions{Path: path, Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.ClientID)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.ScopeList())
	assert.Equal(t, "http://127.0.0.1:8976/oauth/callback", cfg.RedirectURL())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Store.Dir)
	assert.False(t, cfg.VerifySignature)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
client_id: from-file
idp_domain: file.example.com
redirect:
  path: callback
store:
  passphrase: file-secret
`)

	cfg, err := Load(LoadOptions{Path: path, Environment: map[string]string{
		"SIGNET_CLIENT_ID":     "from-env",
		"SIGNET_SCOPES":        "openid",
		"SIGNET_REDIRECT_HOST": "localhost:9000",
		"SIGNET_LOG_LEVEL":     "debug",
	}})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ClientID)
	assert.Equal(t, "file.example.com", cfg.IdPDomain)
	assert.Equal(t, []string{"openid"}, cfg.ScopeList())
	assert.Equal(t, "http://localhost:9000/callback", cfg.RedirectURL())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "file-secret", cfg.Store.Passphrase)
	assert.Equal(t, "********", cfg.Redacted().Store.Passphrase)
	assert.Equal(t, "file-secret", cfg.Store.Passphrase, "Redacted must not mutate the receiver")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yaml"), Environment: map[string]string{}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigUnreadable, errors.CodeOf(err))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "client_id: [unterminated\n")
	_, err := Load(LoadOptions{Path: path, Environment: map[string]string{}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigUnreadable, errors.CodeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{ClientID: "c", IdPDomain: "auth.example.com"}, false},
		{"missing client id", Config{IdPDomain: "auth.example.com"}, true},
		{"missing domain", Config{ClientID: "c"}, true},
		{"blank client id", Config{ClientID: "  ", IdPDomain: "auth.example.com"}, true},
		{"verify without jwks", Config{ClientID: "c", IdPDomain: "d.example.com", VerifySignature: true, Issuer: "https://issuer"}, true},
		{"http redirect", Config{ClientID: "c", IdPDomain: "auth.example.com", Redirect: RedirectConfig{Scheme: "http"}}, false},
		{"https redirect", Config{ClientID: "c", IdPDomain: "auth.example.com", Redirect: RedirectConfig{Scheme: "https"}}, true},
		{"verify complete", Config{ClientID: "c", IdPDomain: "d.example.com", VerifySignature: true, Issuer: "https://issuer", JWKSURL: "https://issuer/jwks"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrConfiguration), "want CONFIG-001, got %v", err)
		})
	}
}

func TestLoad_RejectsNonHTTPRedirectScheme(t *testing.T) {
	path := writeConfig(t, "client_id: abc\nidp_domain: auth.example.com\n")

	cfg, err := Load(LoadOptions{Path: path, Environment: map[string]string{"SIGNET_REDIRECT_SCHEME": "https"}})
	require.NoError(t, err)
	assert.Equal(t, "https", cfg.Redirect.Scheme)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigMissing, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "redirect.scheme")
}

func TestEndpoints(t *testing.T) {
	tests := []struct {
		domain    string
		authorize string
		token     string
	}{
		{"auth.example.com", "https://auth.example.com/oauth2/authorize", "https://auth.example.com/oauth2/token"},
		{"https://auth.example.com/", "https://auth.example.com/oauth2/authorize", "https://auth.example.com/oauth2/token"},
		{"http://127.0.0.1:5555", "http://127.0.0.1:5555/oauth2/authorize", "http://127.0.0.1:5555/oauth2/token"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			cfg := Config{ClientID: "c", IdPDomain: tt.domain}
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.authorize, cfg.AuthorizeURL())
			assert.Equal(t, tt.token, cfg.TokenURL())
			assert.Equal(t, strings.TrimSuffix(tt.token, "/token")+"/userInfo", cfg.UserInfoURL())
		})
	}
}
