package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinshin4n4n/tube-review-sub001/internal/app"
)

func newRefreshStatsCmd(c *cli) *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "refresh-stats",
		Short: "Recompute channel stats and the ranking now",
		Long: `Recompute every channel's stats from live reviews and swap the
table in one step. Running servers skip their own scheduled refresh while
this one holds the refresh lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.setup(cmd)
			if err != nil {
				return err
			}
			if window > 0 {
				cfg.StatsRecentWindow = window
			}

			ctx := cmd.Context()
			stores, err := app.OpenStores(ctx, cfg, false, log)
			if err != nil {
				return err
			}
			defer stores.Close()

			cache, redisClient := app.NewRankingCache(ctx, cfg, log)
			if redisClient != nil {
				defer redisClient.Close()
			}
			events, kafka := app.NewEvents(ctx, cfg, log)
			if kafka != nil {
				defer kafka.Close()
			}

			ref, err := app.NewRefresher(cfg, stores.Stats, cache, events, nil, log).Refresh(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d channel(s) at %s after %d attempt(s)\n",
				ref.ChannelCount, ref.RefreshedAt.Format(time.RFC3339), ref.Attempts)
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "Override STATS_RECENT_WINDOW for this run")
	return cmd
}
