package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/certify-api/internal/app"
	certService "github.com/jwalitptl/certify-api/internal/service/certificate"
)

var (
	issueSend      bool
	issueRecompute bool
)

var issueCmd = &cobra.Command{
	Use:   "issue <event-id>",
	Short: "Issue certificates to every verified registrant of an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventID, err := parseIDArg(args[0], "event id")
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			// the in-process queue dies with this command
			if issueSend && a.Config.Redis.URL == "" {
				return fmt.Errorf("--send needs redis.url so a worker can pick up the deliveries")
			}
			result, err := a.Certificates.IssueForEvent(cmd.Context(), eventID, certService.IssueOptions{
				Send:      issueSend,
				Recompute: issueRecompute,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <event-id>",
	Short: "Re-apply event details to the event's existing certificates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventID, err := parseIDArg(args[0], "event id")
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			result, err := a.Certificates.RefreshForEvent(cmd.Context(), eventID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(refreshCmd)

	issueCmd.Flags().BoolVar(&issueSend, "send", false, "Queue delivery of newly issued certificates")
	issueCmd.Flags().BoolVar(&issueRecompute, "recompute", false, "Re-apply event details to certificates that already exist")
}
