package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
)

var gcForce bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reconcile the session registry with the container runtime (admin)",
	Long: `Compares registry entries with the containers the runtime reports.

Without --force, prints what would be cleaned (dry run).
With --force, removes stale entries and destroys orphaned containers.

Detects:
  - Stale entries: registered sessions whose container no longer exists
  - Orphaned containers: labelled session containers missing from the registry`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "Actually remove stale entries and orphaned containers (default is dry run)")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := authorize(ctx, authz.ActionReconcile)
	if err != nil {
		return err
	}

	report, err := a.Manager.Reconcile(ctx, gcForce)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	if report.Clean() {
		logInfo("No stale entries or orphaned containers found")
		return nil
	}

	printReport(cmd.OutOrStdout(), report)

	if !report.Fixed {
		logInfo("Dry run. Use --force to clean up.")
		return nil
	}
	for _, e := range report.Errors {
		logWarning("%s", e)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("gc finished with %d errors", len(report.Errors))
	}
	logSuccess("Removed %d stale entries and %d orphaned containers", len(report.Stale), len(report.Orphans))
	return nil
}

func printReport(w io.Writer, report *lifecycle.ReconcileReport) {
	if len(report.Stale) > 0 {
		fmt.Fprintln(w, "Stale registry entries:")
		for _, f := range report.Stale {
			fmt.Fprintf(w, "  - %s/%s (port %d)\n", f.User, f.SessionID, f.Port)
		}
	}
	if len(report.Orphans) > 0 {
		fmt.Fprintln(w, "Orphaned containers:")
		for _, f := range report.Orphans {
			fmt.Fprintf(w, "  - %s (%s/%s)\n", f.Container, f.User, f.SessionID)
		}
	}
}
