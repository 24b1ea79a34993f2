package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
)

// headerStyle keeps tabs so tabwriter can align the styled header row.
var headerStyle = lipgloss.NewStyle().Bold(true).TabWidth(lipgloss.NoTabConversion)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List your sessions",
	Args:  cobra.NoArgs,
	RunE:  runPs,
}

func init() {
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionManage)
	if err != nil {
		return err
	}

	sessions, err := a.Manager.Sessions(ctx, subject.Name)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		logInfo("No sessions found. Start one with: desklab launch [image]")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("SESSION\tPORT\tTOKEN\tIMAGE\tUPTIME\tSTATUS"))
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			s.ID, s.Port, s.Token, s.Image, s.Uptime, formatStatus(s.Status))
	}
	return w.Flush()
}
