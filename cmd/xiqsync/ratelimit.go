package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/xiqsync/internal/ui"
	"github.com/joshp123/xiqsync/internal/xiq"
)

var thresholds = xiq.DefaultThresholds()

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Check the remaining API budget (exit 0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN)",
	RunE:  runRatelimit,
}

func init() {
	rootCmd.AddCommand(ratelimitCmd)
	ratelimitCmd.Flags().Float64VarP(&thresholds.Warning, "warning", "w", thresholds.Warning, "warn when remaining budget percent is at or below")
	ratelimitCmd.Flags().Float64VarP(&thresholds.Critical, "critical", "k", thresholds.Critical, "critical when remaining budget percent is at or below")
}

func runRatelimit(cmd *cobra.Command, _ []string) error {
	report := func(sev xiq.Severity, msg string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", ui.Severity(sev.String()), msg)
		if sev == xiq.SeverityOK {
			return nil
		}
		return &exitError{code: int(sev)}
	}

	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return report(xiq.SeverityUnknown, err.Error())
	}
	cred, err := authenticator.Credential(cmd.Context(), cfg.ForceLogin)
	if err != nil {
		return report(xiq.SeverityUnknown, err.Error())
	}
	client, err := newClient(cfg, cred.Token)
	if err != nil {
		return report(xiq.SeverityUnknown, err.Error())
	}
	probe, err := client.ProbeBudget(cmd.Context())
	if err != nil {
		return report(xiq.SeverityUnknown, err.Error())
	}
	return report(thresholds.Evaluate(probe))
}
