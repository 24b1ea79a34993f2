package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var destroyCmd = &cobra.Command{
	Use:     "destroy <session>",
	Aliases: []string{"rm"},
	Short:   "Stop a session and remove its container",
	Args:    cobra.ExactArgs(1),
	RunE:    runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	if err := a.Manager.Destroy(ctx, subject.Name, args[0]); err != nil {
		return err
	}
	logSuccess("Session %s destroyed", args[0])
	return nil
}
