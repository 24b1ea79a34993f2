package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive session picker",
	Long: `Opens an interactive TUI listing your sessions and the images you can
launch.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  Enter  - Show connection details, or launch the selected image
  d      - Destroy the selected session
  r      - Reboot the selected session
  s      - Save the selected session as an image
  q/Esc  - Quit

When stdout is not a terminal the sessions are listed instead.`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	sessions, err := a.Manager.Sessions(ctx, subject.Name)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), tui.SimplePicker(sessions))
		return nil
	}

	base, err := a.Manager.BaseImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list base images: %w", err)
	}
	mine, err := a.Manager.UserImages(ctx, subject.Name)
	if err != nil {
		return fmt.Errorf("failed to list saved images: %w", err)
	}

	logging.Debug("picker mode started", "sessions", len(sessions))
	result, err := tui.RunPicker(sessions, base, mine)
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}
	logging.Debug("picker result", "action", result.Action)

	out := cmd.OutOrStdout()
	switch result.Action {
	case tui.ActionOpen:
		fmt.Fprintf(out, "Session %s\n  Port:  %d\n  Token: %s\n", result.Session.ID, result.Session.Port, result.Session.Token)

	case tui.ActionLaunch:
		sid, port, err := a.Manager.Launch(ctx, subject.Name, result.Image.Ref)
		if err != nil {
			return err
		}
		logSuccess("Session %s started on port %d", sid, port)

	case tui.ActionDestroy:
		if err := a.Manager.Destroy(ctx, subject.Name, result.Session.ID); err != nil {
			return err
		}
		logSuccess("Session %s destroyed", result.Session.ID)

	case tui.ActionReboot:
		if err := a.Manager.Reboot(ctx, subject.Name, result.Session.ID); err != nil {
			return err
		}
		logSuccess("Session %s rebooted", result.Session.ID)

	case tui.ActionSave:
		if err := authz.Check(subject, authz.ActionSave); err != nil {
			return err
		}
		ref, err := a.Manager.Save(ctx, subject.Name, result.Session.ID, result.Save.Name, result.Save.Desc)
		if err != nil {
			return err
		}
		logSuccess("Session %s saved as %s", result.Session.ID, ref)

	case tui.ActionNone:
		logInfo("No sessions or images found")
	}

	return nil
}
