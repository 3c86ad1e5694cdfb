// Command regulator-token mints a bearer token for the regulator API using the
// same configuration the server loads.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/platform/config"
	"onboard/pkg/platform/middleware/admin"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "regulator-token --subject <officer-id>",
		Short: "Mint a bearer token for the /api/admin console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			jwt := jwttoken.NewJWTService(cfg.Admin.JWTSigningKey, cfg.Admin.JWTIssuer, jwttoken.AdminAudience)
			token, err := jwt.GenerateAccessToken(subject, role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "regulator officer identifier")
	cmd.Flags().StringVarP(&role, "role", "r", admin.RoleRegulator, "console role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
