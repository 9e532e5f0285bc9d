package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/signet/internal/auth"
	"github.com/felixgeelhaar/signet/internal/auth/oidc"
	"github.com/felixgeelhaar/signet/internal/auth/useragent"
	"github.com/felixgeelhaar/signet/internal/config"
	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/log"
	"github.com/felixgeelhaar/signet/internal/securestore"
)

// app is the application root: it owns the single session cache, claims
// mapper and facade for the process.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	facade *auth.Facade

	// keys holds the device master key; nil for a passphrase store.
	keys securestore.KeyStore
}

// newAuthorizer builds the production authorizer. Tests replace it.
var newAuthorizer = func(cfg *config.Config, logger *log.Logger, prompt io.Writer) (auth.Authorizer, error) {
	ua, err := useragent.NewLoopback(cfg.RedirectURL(),
		useragent.WithPrompt(prompt),
		useragent.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigMissing, "invalid redirect configuration", err).
			WithSuggestion("Use an http://127.0.0.1:<port>/<path> redirect registered with the identity provider")
	}
	return oidc.NewAuthorizer(cfg, ua, oidc.Options{Logger: logger})
}

// loadConfig resolves configuration and the process logger from flags.
func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{Path: cfgFile})
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeConfigUnreadable, "invalid log level", err)
	}
	format, err := log.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeConfigUnreadable, "invalid log format", err)
	}

	logger := log.New(log.Config{Level: level, Format: format})
	log.SetDefaultLogger(logger)
	return cfg, logger, nil
}

// newApp wires the facade for an auth command.
func newApp(cmd *cobra.Command, onState func(auth.State)) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	authorizer, err := newAuthorizer(cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	var keys securestore.KeyStore
	if cfg.Store.Passphrase == "" {
		keys = securestore.DeviceKeyStore(cfg.Store.Dir, logger)
	}

	facade, err := auth.New(auth.Options{
		Authorizer:    authorizer,
		Storage:       securestore.Open(cfg.Store.Dir, cfg.Store.Passphrase, keys),
		Cache:         auth.NewSessionCache(),
		Mapper:        auth.NewClaimsMapper(logger),
		Logger:        logger,
		OnStateChange: onState,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, facade: facade, keys: keys}, nil
}
