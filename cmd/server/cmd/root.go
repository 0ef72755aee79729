package cmd

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "eventplus",
		Short: "EventPlus server - events, attendance and moderated comments",
		Long: `EventPlus server exposes the events API backed by PostgreSQL.

The server supports:
- Registration and login for administrators, organizers and attendees
- Event creation with capacity limits and cascade deletion
- Seat reservations that never oversell an event
- Comments gated by an external moderation service, with background retries`,
		SilenceUsage: true,
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), opts, serveFlags{})
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML file of environment defaults (optional)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	root.AddCommand(newTokenCommand(opts))
	return root
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the optional --config file, reads the environment and
// then the logging flags.
func loadConfig(opts *globalOptions) (config.Config, error) {
	if opts.configPath != "" {
		if err := config.ApplyFile(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}
