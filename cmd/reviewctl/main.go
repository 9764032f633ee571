// Command reviewctl runs maintenance tasks against the review service's
// store: schema migrations, on-demand stats refreshes, demo data and
// access tokens for local testing.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinshin4n4n/tube-review-sub001/internal/config"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/logger"
)

// cli carries what every subcommand needs. loadConfig is swapped in tests.
type cli struct {
	loadConfig func() (*config.Config, error)
	logLevel   string
}

func (c *cli) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	return cfg, logger.NewWithWriter("reviewctl", level, cmd.ErrOrStderr()), nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Maintenance tasks for the tube review service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(c),
		newRefreshStatsCmd(c),
		newSeedCmd(c),
		newTokenCmd(c),
	)
	return root
}

func main() {
	c := &cli{loadConfig: func() (*config.Config, error) { return config.Load() }}
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
