package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

var (
	userAddRole    string
	userAddComment string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage desklab accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create an account (admin)",
	Long: `Creates an API account. The password is read from the terminal without
echo, or from one line of stdin when piped.

When no accounts exist yet the first account may be created by anyone.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd [name]",
	Short: "Change an account password",
	Long: `Changes the acting user's password. Changing another account's password
requires the admin role.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUserPasswd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts (admin)",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userAddCmd.Flags().StringVar(&userAddRole, "role", string(authz.RoleUser), "Account role (user or admin)")
	userAddCmd.Flags().StringVar(&userAddComment, "comment", "", "Free-form comment")
	userCmd.AddCommand(userAddCmd, userPasswdCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	existing, err := a.Users.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if _, _, err := authorize(ctx, authz.ActionManageUsers); err != nil {
			return err
		}
	}

	password, err := readNewSecret("password")
	if err != nil {
		return err
	}
	if err := a.Users.Add(ctx, args[0], password, authz.Role(userAddRole), userAddComment); err != nil {
		return err
	}
	logSuccess("Account %s created with role %s", args[0], userAddRole)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
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

	password, err := readNewSecret("password")
	if err != nil {
		return err
	}
	if err := a.Users.SetPassword(ctx, target, password); err != nil {
		return err
	}
	logSuccess("Password changed for %s", target)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := authorize(ctx, authz.ActionManageUsers)
	if err != nil {
		return err
	}

	accounts, err := a.Users.List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		logInfo("No accounts found. Create one with: desklab user add <name>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("NAME\tROLE\tCOMMENT"))
	for _, u := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Name, u.Role, u.Comment)
	}
	return w.Flush()
}
