package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var rebootCmd = &cobra.Command{
	Use:   "reboot <session>",
	Short: "Restart a session's container",
	Long: `Restarts the session container in place. Files written inside the
container survive a reboot; use reset to discard them.`,
	Args: cobra.ExactArgs(1),
	RunE: runReboot,
}

func init() {
	rootCmd.AddCommand(rebootCmd)
}

func runReboot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	logInfo("Rebooting session %s...", args[0])
	if err := a.Manager.Reboot(ctx, subject.Name, args[0]); err != nil {
		return err
	}
	logSuccess("Session %s rebooted", args[0])
	return nil
}
