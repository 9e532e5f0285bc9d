package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signet",
	Short: "Sign in to your organization's identity provider",
	Long: `signet signs you in through your organization's hosted identity provider
using the OAuth2 authorization-code flow with PKCE, keeps the session in
encrypted device storage, and hands the access token to other tools.

Configuration is read from a YAML file (see 'signet config view') and
SIGNET_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// ExecuteContext runs the root command with ctx. Cancelling ctx aborts a
// sign-in that is waiting for the browser.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/signet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
}
