package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var (
	promoteTag  string
	promoteName string
	promoteDesc string
)

var promoteCmd = &cobra.Command{
	Use:   "promote <image>",
	Short: "Publish an image as a base image (admin)",
	Long: `Tags an image into the base repository so every user can launch it.
Without --tag the source tag is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().StringVarP(&promoteTag, "tag", "t", "", "Tag in the base repository")
	promoteCmd.Flags().StringVarP(&promoteName, "name", "n", "", "Display name of the base image (required)")
	promoteCmd.Flags().StringVarP(&promoteDesc, "desc", "d", "", "Description of the base image")
	_ = promoteCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := authorize(ctx, authz.ActionPromote)
	if err != nil {
		return err
	}

	ref, err := a.Manager.Promote(ctx, args[0], promoteTag, promoteName, promoteDesc)
	if err != nil {
		return err
	}
	logSuccess("Promoted %s", args[0])
	fmt.Fprintln(cmd.OutOrStdout(), ref)
	return nil
}
