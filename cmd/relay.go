package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/desklab/internal/relay"
)

var relayListen string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the websocket relay on its own listener",
	Long: `Serves only the websocket relay at /websockify?token=<user>:<session>,
plus /healthz and /metrics. Tokens are resolved against the session registry
on every connection.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", "", "Listen address (default from config)")
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := relayListen
	if addr == "" {
		addr = a.Config.RelayAddr
	}
	srv, err := relay.NewServer(relayConfig(a, addr))
	if err != nil {
		return err
	}

	return runUntilDone(ctx, srv.Start, srv.Shutdown)
}
