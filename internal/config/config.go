// Package config resolves signet's OAuth and storage settings.
//
// Values come from an optional YAML file, then SIGNET_* environment variables
// override them, then defaults fill whatever is still empty. The result is built
// once at startup and passed to constructors; nothing reads the environment later.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/signet/internal/errors"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SIGNET_"

// Defaults
const (
	DefaultScopes         = "openid email profile"
	DefaultRedirectScheme = "http"
	DefaultRedirectHost   = "127.0.0.1:8976"
	DefaultRedirectPath   = "/oauth/callback"
)

// Config is the resolved configuration.
type Config struct {
	// ClientID is the OAuth client id registered with the identity provider.
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`

	// IdPDomain is the hosted identity provider domain, with or without scheme.
	// Example: "auth.example.com" or "https://auth.example.com"
	IdPDomain string `yaml:"idp_domain" env:"IDP_DOMAIN"`

	Redirect RedirectConfig `yaml:"redirect" envPrefix:"REDIRECT_"`

	// Scopes is a space-separated scope list.
	Scopes string `yaml:"scopes" env:"SCOPES"`

	// VerifySignature turns on ID token signature checks against JWKSURL.
	// Off by default: claims are then untrusted presentation data bound to the
	// attempt by the nonce only.
	VerifySignature bool   `yaml:"verify_signature" env:"VERIFY_SIGNATURE"`
	Issuer          string `yaml:"issuer,omitempty" env:"ISSUER"`
	JWKSURL         string `yaml:"jwks_url,omitempty" env:"JWKS_URL"`

	Store StoreConfig `yaml:"store" envPrefix:"STORE_"`
	Log   LogConfig   `yaml:"log" envPrefix:"LOG_"`
}

// RedirectConfig describes the redirect URI the identity provider calls back.
type RedirectConfig struct {
	Scheme string `yaml:"scheme" env:"SCHEME"`
	Host   string `yaml:"host" env:"HOST"`
	Path   string `yaml:"path" env:"PATH"`
}

// StoreConfig locates the encrypted session store.
type StoreConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
	// Passphrase switches key derivation from the OS key store to PBKDF2.
	Passphrase string `yaml:"passphrase,omitempty" env:"PASSPHRASE"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Path is an explicit config file. Empty means DefaultPath(), which may be absent.
	Path string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// DefaultPath returns $XDG_CONFIG_HOME/signet/config.yaml (or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".signet", "config.yaml")
	}
	return filepath.Join(dir, "signet", "config.yaml")
}

// Load resolves configuration from file, environment and defaults.
// It does not validate required values; see Validate.
func Load(opts LoadOptions) (*Config, error) {
	cfg := &Config{}

	path := opts.Path
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigUnreadable, fmt.Sprintf("failed to parse config file: %s", path), err).
				WithSuggestion("Check the YAML syntax of the config file")
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; env and defaults may be enough.
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigUnreadable, fmt.Sprintf("failed to read config file: %s", path), err)
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if opts.Environment != nil {
		envOpts.Environment = opts.Environment
	}
	if err := env.ParseWithOptions(cfg, envOpts); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigUnreadable, "failed to parse environment", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Scopes) == "" {
		c.Scopes = DefaultScopes
	}
	if c.Redirect.Scheme == "" {
		c.Redirect.Scheme = DefaultRedirectScheme
	}
	if c.Redirect.Host == "" {
		c.Redirect.Host = DefaultRedirectHost
	}
	if c.Redirect.Path == "" {
		c.Redirect.Path = DefaultRedirectPath
	}
	if !strings.HasPrefix(c.Redirect.Path, "/") {
		c.Redirect.Path = "/" + c.Redirect.Path
	}
	if c.Store.Dir == "" {
		c.Store.Dir = filepath.Join(filepath.Dir(DefaultPath()), "secure")
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate fails fast with a CONFIG-001 error when a required value is absent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.NewConfigMissingError("client_id", EnvPrefix+"CLIENT_ID")
	}
	if strings.TrimSpace(c.IdPDomain) == "" {
		return errors.NewConfigMissingError("idp_domain", EnvPrefix+"IDP_DOMAIN")
	}
	if _, err := c.baseURL(); err != nil {
		return errors.Wrap(errors.ErrCodeConfigMissing, "idp_domain is not a valid host or URL", err)
	}
	if s := c.Redirect.Scheme; s != "" && s != DefaultRedirectScheme {
		return errors.NewConfigInvalidError("redirect.scheme",
			fmt.Sprintf("%q is not supported; the callback listener serves plain http on loopback", s),
			"Remove redirect.scheme or set it to http",
			"Unset the "+EnvPrefix+"REDIRECT_SCHEME environment variable")
	}
	if c.VerifySignature {
		if c.Issuer == "" {
			return errors.NewConfigMissingError("issuer", EnvPrefix+"ISSUER")
		}
		if c.JWKSURL == "" {
			return errors.NewConfigMissingError("jwks_url", EnvPrefix+"JWKS_URL")
		}
	}
	return nil
}

// baseURL normalizes IdPDomain to scheme://host without a trailing slash.
func (c *Config) baseURL() (string, error) {
	raw := strings.TrimSpace(c.IdPDomain)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", c.IdPDomain)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// AuthorizeURL returns {domain}/oauth2/authorize.
func (c *Config) AuthorizeURL() string {
	base, _ := c.baseURL()
	return base + "/oauth2/authorize"
}

// TokenURL returns {domain}/oauth2/token.
func (c *Config) TokenURL() string {
	base, _ := c.baseURL()
	return base + "/oauth2/token"
}

// UserInfoURL returns {domain}/oauth2/userInfo.
func (c *Config) UserInfoURL() string {
	base, _ := c.baseURL()
	return base + "/oauth2/userInfo"
}

// RedirectURL returns the full redirect URI sent to the identity provider.
func (c *Config) RedirectURL() string {
	return c.Redirect.Scheme + "://" + c.Redirect.Host + c.Redirect.Path
}

// ScopeList splits Scopes on whitespace.
func (c *Config) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Store.Passphrase != "" {
		c.Store.Passphrase = "********"
	}
	return c
}
