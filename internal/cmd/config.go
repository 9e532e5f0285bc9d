package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/signet/internal/config"
	"github.com/felixgeelhaar/signet/internal/ux"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect signet configuration",
	Long: `Inspect the resolved configuration.

Values come from the config file, then SIGNET_* environment variables, then
defaults. Secrets are masked.

Environment variables:
  SIGNET_CLIENT_ID, SIGNET_IDP_DOMAIN, SIGNET_SCOPES,
  SIGNET_REDIRECT_SCHEME, SIGNET_REDIRECT_HOST, SIGNET_REDIRECT_PATH,
  SIGNET_VERIFY_SIGNATURE, SIGNET_ISSUER, SIGNET_JWKS_URL,
  SIGNET_STORE_DIR, SIGNET_STORE_PASSPHRASE, SIGNET_LOG_LEVEL, SIGNET_LOG_FORMAT`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the resolved configuration as YAML",
	RunE:  runConfigView,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configViewCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := ux.NewFormatter("yaml", &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	if err := formatter.Format(cfg.Redacted()); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nWarning: configuration is incomplete:\n%v\n", err)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
