package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinshin4n4n/tube-review-sub001/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with AUTH_JWT_SECRET",
		Long: `Issue an HS256 access token for local testing. Use --role service_role
to call the admin endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.setup(cmd)
			if err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			m := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTLeeway)
			token, err := m.GenerateAccessToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Subject (user id) of the token")
	cmd.Flags().StringVar(&role, "role", "authenticated", "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
