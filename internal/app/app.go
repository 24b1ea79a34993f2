// Package app wires the desklab services together. It allows dependency
// injection for testing.
package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/docstore"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/port"
	"github.com/firefly-engineering/desklab/internal/registry"
	"github.com/firefly-engineering/desklab/internal/runtime"
	"github.com/firefly-engineering/desklab/internal/token"
	"github.com/firefly-engineering/desklab/internal/users"
)

// App holds the application dependencies
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Runtime is the container runtime
	Runtime runtime.Runtime

	// Store holds the registry, user and metadata documents
	Store docstore.Store

	// Clock is shared by audit, lifecycle and the relay limiter
	Clock clockwork.Clock

	Registry *registry.Registry
	Ports    *port.Allocator
	Audit    *audit.Logger
	Manager  *lifecycle.Manager
	Users    *users.Store
	Resolver *token.Resolver

	lifecycleOpts []lifecycle.Option
}

// Option is a function that configures the App
type Option func(*App)

// WithConfig sets the configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithRuntime sets a custom runtime
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithStore sets a custom document store
func WithStore(s docstore.Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithClock sets the clock
func WithClock(c clockwork.Clock) Option {
	return func(a *App) {
		a.Clock = c
	}
}

// WithPortProbe replaces the port allocator's probe
func WithPortProbe(probe func(int) bool) Option {
	return func(a *App) {
		a.Ports = port.NewAllocator(a.Config.PortRange.From, a.Config.PortRange.To)
		a.Ports.Probe = probe
	}
}

// WithLifecycleOptions passes options through to the lifecycle manager
func WithLifecycleOptions(opts ...lifecycle.Option) Option {
	return func(a *App) {
		a.lifecycleOpts = append(a.lifecycleOpts, opts...)
	}
}

// New creates an App with the given options. The runtime and store are
// created from the configuration unless provided.
func New(ctx context.Context, opts ...Option) (*App, error) {
	a := &App{
		Config: config.Default(),
		Clock:  clockwork.NewRealClock(),
	}

	// WithConfig must run before options that read the configuration.
	for _, opt := range opts {
		opt(a)
	}

	if a.Runtime == nil {
		rt, err := runtime.New(a.Config.Runtime.Command)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize runtime: %w", err)
		}
		a.Runtime = rt
	}

	if a.Store == nil {
		store, err := docstore.Open(ctx, &a.Config.Store, a.Runtime)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", a.Config.Store.Backend, err)
		}
		a.Store = store
	}

	registryRef, err := docstore.ParseRef(a.Config.Store.RegistryRef)
	if err != nil {
		return nil, err
	}
	usersRef, err := docstore.ParseRef(a.Config.Store.UsersRef)
	if err != nil {
		return nil, err
	}

	if a.Ports == nil {
		a.Ports = port.NewAllocator(a.Config.PortRange.From, a.Config.PortRange.To)
	}
	a.Registry = registry.New(a.Store, registryRef)
	a.Audit = audit.NewLogger(a.Config.StateDir, a.Clock)
	a.Users = users.NewStore(a.Store, usersRef)
	a.Resolver = token.NewResolver(a.Registry)

	lifecycleOpts := append([]lifecycle.Option{
		lifecycle.WithAudit(a.Audit),
		lifecycle.WithClock(a.Clock),
	}, a.lifecycleOpts...)
	a.Manager = lifecycle.NewManager(a.Config, a.Runtime, a.Store, a.Registry, a.Ports, lifecycleOpts...)

	logging.Debug("application initialized",
		"runtime", a.Runtime.Name(),
		"store", a.Config.Store.Backend,
		"registry", registryRef.String())
	return a, nil
}

// Close releases the document store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// Default is the application instance commands use when set. Tests install
// one with SetDefault; otherwise commands build their own from flags.
var Default *App

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault clears the default application instance
func ResetDefault() {
	Default = nil
}
