package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinshin4n4n/tube-review-sub001/internal/app"
	"github.com/shinshin4n4n/tube-review-sub001/internal/seed"
)

func newSeedCmd(c *cli) *cobra.Command {
	opts := seed.DefaultOptions()
	var refresh bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with demo channels, authors, reviews and votes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.setup(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			stores, err := app.OpenStores(ctx, cfg, true, log)
			if err != nil {
				return err
			}
			defer stores.Close()

			res, err := seed.NewSeeder(stores.Profiles, stores.Channels, stores.Reviews, stores.Votes, log).Run(ctx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "profiles=%d channels=%d reviews=%d duplicates=%d votes=%d\n",
				res.Profiles, res.Channels, res.Reviews, res.Duplicates, res.Votes)

			if !refresh {
				return nil
			}
			events, _ := app.NewEvents(ctx, cfg, log)
			ref, err := app.NewRefresher(cfg, stores.Stats, nil, events, nil, log).Refresh(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "refreshed %d channel(s)\n", ref.ChannelCount)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.Users, "users", opts.Users, "Number of authors")
	f.IntVar(&opts.ReviewsPerUser, "reviews-per-user", opts.ReviewsPerUser, "Reviews written by each author")
	f.IntVar(&opts.VotesPerReview, "votes-per-review", opts.VotesPerReview, "Helpful votes cast on each review")
	f.DurationVar(&opts.Spread, "spread", opts.Spread, "How far back review timestamps reach")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "Random seed")
	f.BoolVar(&refresh, "refresh", false, "Refresh channel stats afterwards")
	return cmd
}
