package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List base images and your saved images",
	Args:  cobra.NoArgs,
	RunE:  runImages,
}

var rmiCmd = &cobra.Command{
	Use:   "rmi <image>",
	Short: "Delete one of your saved images",
	Long: `Deletes an image from the runtime. Users may delete images in their own
repository; admins may delete any image.`,
	Args: cobra.ExactArgs(1),
	RunE: runRmi,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(rmiCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionLaunch)
	if err != nil {
		return err
	}

	base, err := a.Manager.BaseImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list base images: %w", err)
	}
	mine, err := a.Manager.UserImages(ctx, subject.Name)
	if err != nil {
		return fmt.Errorf("failed to list saved images: %w", err)
	}

	if len(base) == 0 && len(mine) == 0 {
		logInfo("No images found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("IMAGE\tNAME\tDESCRIPTION\tCREATED"))
	writeImageRows(w, base)
	writeImageRows(w, mine)
	return w.Flush()
}

func writeImageRows(w io.Writer, images []lifecycle.ImageEntry) {
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.Ref, img.Metadata.Name, img.Metadata.Desc, img.Created)
	}
}

func runRmi(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionDeleteImage)
	if err != nil {
		return err
	}

	ref := args[0]
	owner, owned := a.Manager.ImageOwner(ref)
	if !authz.CanDeleteImage(subject, owner, owned) {
		return deskerrors.Forbidden(subject.Name, "delete "+ref)
	}

	if err := a.Manager.DeleteImage(ctx, ref); err != nil {
		return err
	}
	logSuccess("Deleted %s", ref)
	return nil
}
