package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd <session>",
	Short: "Set a session's viewer credential",
	Long: `Sets the credential the desktop viewer asks for. The credential is read
from the terminal without echo, or from one line of stdin when piped.`,
	Args: cobra.ExactArgs(1),
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}

func runPasswd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	cred, err := readNewSecret("credential")
	if err != nil {
		return err
	}
	if cred == "" {
		return deskerrors.ValidationError("credential cannot be empty")
	}

	if err := a.Manager.RotateCredential(ctx, subject.Name, args[0], cred); err != nil {
		return err
	}
	logSuccess("Credential updated for session %s", args[0])
	return nil
}
