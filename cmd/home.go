package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var homeOutput string

var homeCmd = &cobra.Command{
	Use:   "home <session>",
	Short: "Download a session's home directory as a tar archive",
	Long: `Copies /home out of the session container into a tar archive. The
archive is written to <container>_homedir.tar unless --output is given;
"-" writes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runHome,
}

func init() {
	homeCmd.Flags().StringVarP(&homeOutput, "output", "o", "", "Output file (\"-\" for stdout)")
	rootCmd.AddCommand(homeCmd)
}

func runHome(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	rc, filename, err := a.Manager.DownloadHome(ctx, subject.Name, args[0])
	if err != nil {
		return err
	}
	defer rc.Close()

	if homeOutput == "-" {
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	}
	if homeOutput != "" {
		filename = homeOutput
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	n, err := io.Copy(f, rc)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	logSuccess("Wrote %s (%d bytes)", filename, n)
	return nil
}
