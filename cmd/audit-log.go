package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var auditLogCmd = &cobra.Command{
	Use:   "audit-log [user]",
	Short: "Display the session audit trail",
	Long: `Prints lifecycle events for a user, oldest first. Without an argument the
acting user's events are shown. Other users' trails, including the "_system"
trail, require the admin role.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditLog,
}

func init() {
	rootCmd.AddCommand(auditLogCmd)
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	target := subject.Name
	if len(args) == 1 && args[0] != subject.Name {
		if err := authz.Check(subject, authz.ActionManageUsers); err != nil {
			return err
		}
		target = args[0]
	}

	events, err := a.Audit.Events(target)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		logInfo("No events found for %s", target)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if jsonOutput {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		if e.Details != "" {
			fmt.Fprintf(out, "[%s] %-17s %s (%s)\n", ts, e.Type, e.Session, e.Details)
		} else {
			fmt.Fprintf(out, "[%s] %-17s %s\n", ts, e.Type, e.Session)
		}
	}
	return nil
}
