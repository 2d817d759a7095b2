package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/warranty-service/internal/auth"
	"github.com/spec-kit/warranty-service/internal/config"
)

// newTokenCmd mints a bearer token for local testing. Production tokens come
// from the identity provider.
func newTokenCmd() *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			parsed := auth.ParseRoles(roles)
			if len(parsed) == 0 {
				return fmt.Errorf("at least one known role is required")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL()
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
			token, expires, err := tokens.GenerateToken(subject, parsed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "subject (user) id")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant, repeatable (SC_STAFF, SC_TECHNICIAN, EVM_STAFF, ADMIN)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
