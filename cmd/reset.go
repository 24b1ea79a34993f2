package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var resetCmd = &cobra.Command{
	Use:   "reset <session>",
	Short: "Recreate a session from its image",
	Long: `Removes the session container and starts a fresh one from the same
image on the same port. Changes made inside the session are lost and the
viewer credential is cleared.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	logInfo("Resetting session %s...", args[0])
	if err := a.Manager.Reset(ctx, subject.Name, args[0]); err != nil {
		return err
	}
	logSuccess("Session %s reset", args[0])
	return nil
}
