package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/token"
)

var (
	launchWait        bool
	launchWaitTimeout time.Duration
)

var launchCmd = &cobra.Command{
	Use:   "launch [image]",
	Short: "Start a new desktop session",
	Long: `Starts a new desktop session from a base image or one of your saved
images. Without an argument the base repository's "latest" tag is used.

The session is reachable through the relay with the printed token.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().BoolVar(&launchWait, "wait", false, "Wait until the display accepts connections")
	launchCmd.Flags().DurationVar(&launchWaitTimeout, "wait-timeout", 30*time.Second, "How long --wait waits")
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, subject, err := authorize(ctx, authz.ActionLaunch)
	if err != nil {
		return err
	}

	image := a.Config.BaseRepo + ":latest"
	if len(args) == 1 {
		image = args[0]
	}

	logInfo("Launching session from %s...", image)
	sid, port, err := a.Manager.Launch(ctx, subject.Name, image)
	if err != nil {
		return err
	}

	if launchWait {
		logging.Debug("waiting for display", "port", port, "timeout", launchWaitTimeout)
		if !a.Manager.WaitForDisplay(ctx, port, launchWaitTimeout) {
			logWarning("Display on port %d did not come up within %s", port, launchWaitTimeout)
		}
	}

	logSuccess("Session %s started", sid)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  Session: %s\n", sid)
	fmt.Fprintf(out, "  Port:    %d\n", port)
	fmt.Fprintf(out, "  Token:   %s\n", token.Format(subject.Name, sid))
	return nil
}
