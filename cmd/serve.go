package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/desklab/internal/api"
	"github.com/firefly-engineering/desklab/internal/app"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/monitor"
	"github.com/firefly-engineering/desklab/internal/relay"
	"github.com/firefly-engineering/desklab/internal/users"
)

const shutdownTimeout = 10 * time.Second

var (
	serveListen          string
	serveReconcile       bool
	serveMonitorInterval time.Duration
	serveAutoReboot      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API with the relay mounted",
	Long: `Serves the JSON API and the websocket relay on one listener.

On first start an "admin" account is created. Its password is taken from
DESKLAB_ADMIN_PASSWORD, or generated and printed once.

With --reconcile, stale registry entries and orphaned containers are cleaned
up before serving. With --monitor-interval, session health is checked in the
background and exported on /metrics; --auto-reboot restarts sessions whose
container has stopped.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveReconcile, "reconcile", false, "Reconcile the registry with the runtime before serving")
	serveCmd.Flags().DurationVar(&serveMonitorInterval, "monitor-interval", 0, "Interval between session health sweeps (0 disables)")
	serveCmd.Flags().BoolVar(&serveAutoReboot, "auto-reboot", false, "Reboot sessions whose container stopped (needs --monitor-interval)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := bootstrapAdmin(ctx, a); err != nil {
		return err
	}

	if serveReconcile {
		report, err := a.Manager.Reconcile(ctx, true)
		if err != nil {
			return err
		}
		logging.Info("startup reconcile finished",
			"stale", len(report.Stale), "orphans", len(report.Orphans), "errors", len(report.Errors))
	}

	if serveMonitorInterval > 0 {
		mon := monitor.New(serveMonitorInterval, a.Manager,
			monitor.WithAutoReboot(serveAutoReboot),
			monitor.WithAuditLogger(a.Audit),
			monitor.WithClock(a.Clock),
		)
		go func() { _ = mon.Run(ctx) }()
	}

	rel, err := relay.New(relayConfig(a, ""))
	if err != nil {
		return err
	}

	addr := serveListen
	if addr == "" {
		addr = a.Config.ListenAddr
	}
	srv := api.NewServer(&api.Config{
		ListenAddr: addr,
		Relay:      rel,
		Logger:     logging.Component("api"),
	}, a.Manager, a.Users)

	return runUntilDone(ctx, srv.Start, srv.Shutdown)
}

// bootstrapAdmin creates the default admin account when no accounts exist.
func bootstrapAdmin(ctx context.Context, a *app.App) error {
	password := os.Getenv("DESKLAB_ADMIN_PASSWORD")
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}

	created, err := a.Users.EnsureAdmin(ctx, password)
	if err != nil {
		return err
	}
	if created && generated {
		logWarning("Created account %q with password %s", users.DefaultAdmin, password)
		logWarning("Change it with: desklab user passwd --user %s", users.DefaultAdmin)
	} else if created {
		logging.Info("created default admin account", "user", users.DefaultAdmin)
	}
	return nil
}

// relayConfig builds the relay configuration from the loaded config.
func relayConfig(a *app.App, listenAddr string) *relay.Config {
	return &relay.Config{
		ListenAddr:     listenAddr,
		Resolver:       a.Resolver,
		RateLimit:      a.Config.Relay.RateLimit,
		Burst:          a.Config.Relay.Burst,
		AllowedOrigins: a.Config.Relay.AllowedOrigins,
		Logger:         logging.Component("relay"),
		Clock:          a.Clock,
	}
}

// runUntilDone runs start until it fails or ctx is cancelled, then shuts
// down gracefully.
func runUntilDone(ctx context.Context, start func() error, shutdown func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return start()
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-done:
			return nil
		}
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return shutdown(shutdownCtx)
	})

	return g.Wait()
}
