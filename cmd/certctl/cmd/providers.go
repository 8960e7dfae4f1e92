package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/certify-api/internal/app"
	"github.com/jwalitptl/certify-api/internal/middleware"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect delivery providers",
}

var providersHealthCmd = &cobra.Command{
	Use:   "health <tenant-id>",
	Short: "Probe the provider a tenant's deliveries would use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := parseIDArg(args[0], "tenant id")
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			health := a.Selector.CheckHealth(cmd.Context(), tenantID)
			if err := printJSON(cmd.OutOrStdout(), health); err != nil {
				return err
			}
			if !health.Healthy() {
				return fmt.Errorf("provider %s is %s", health.ProviderID, health.Status)
			}
			return nil
		})
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id> <tenant-id>",
	Short: "Mint an API bearer token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseIDArg(args[0], "user id")
		if err != nil {
			return err
		}
		tenantID, err := parseIDArg(args[1], "tenant id")
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		token, err := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer).IssueToken(userID, tenantID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersHealthCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}
