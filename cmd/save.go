package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var (
	saveName string
	saveDesc string
)

var saveCmd = &cobra.Command{
	Use:   "save <session>",
	Short: "Commit a session into one of your images",
	Long: `Commits the session container into your image repository with the given
name and description, then stops the session.

Saving a session that was started from one of your own images overwrites that
image. Other sessions are saved under "<container>-<tag>".`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVarP(&saveName, "name", "n", "", "Display name of the image (required)")
	saveCmd.Flags().StringVarP(&saveDesc, "desc", "d", "", "Description of the image")
	_ = saveCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionSave)
	if err != nil {
		return err
	}

	logInfo("Saving session %s...", args[0])
	ref, err := a.Manager.Save(ctx, subject.Name, args[0], saveName, saveDesc)
	if err != nil {
		return err
	}
	logSuccess("Session %s saved", args[0])
	fmt.Fprintln(cmd.OutOrStdout(), ref)
	return nil
}
