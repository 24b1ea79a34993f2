package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
	userFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "desklab",
	Short: "Browser-reachable desktop sessions in containers",
	Long: `desklab runs per-user desktop sessions in containers and serves them
to browsers through a websocket relay.

Each session is a container with:
  - A display server published on a loopback host port
  - A relay token of the form <user>:<session>
  - A rotatable viewer credential
  - An optional saved image that later sessions can start from`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (default /etc/desklab/desklab.toml)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Act as this user (default $DESKLAB_USER or the login name)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
