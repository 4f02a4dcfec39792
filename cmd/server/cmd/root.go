package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tes-agency/portal/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds a fresh command tree. Running it without a
// subcommand starts the server.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	serve := newServeCommand(opts)

	root := &cobra.Command{
		Use:   "server",
		Short: "TES portal server - access keys, accounts and site content",
		Long: `TES portal server backs the agency's public site and staff portal.

It issues single-use access keys, turns them into staff accounts, enforces
the role policy for key management, and stores the photo gallery and
editable page content.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (optional, env vars override it)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(
		serve,
		newMigrateCommand(opts),
		newKeysCommand(opts),
		newTokenCommand(opts),
		newHealthcheckCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads the config file and env, then applies flag overrides.
func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, cfg.Validate()
}
