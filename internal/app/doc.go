// Package app wires desklab's services for the CLI and servers.
//
// The App struct holds the configuration, the container runtime, the
// document store and everything built on them: the session registry, the
// port allocator, the audit log, the lifecycle manager, the account store
// and the token resolver.
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	a, err := app.New(ctx, app.WithConfig(cfg))
//
//	// Testing with custom dependencies
//	a, err := app.New(ctx,
//	    app.WithConfig(cfg),
//	    app.WithRuntime(runtime.NewMockRuntime()),
//	    app.WithStore(docstore.NewMemoryStore()),
//	)
//
// # Available Options
//
//	WithConfig(cfg)            // Configuration (apply first)
//	WithRuntime(runtime)       // Custom container runtime
//	WithStore(store)           // Custom document store
//	WithClock(clock)           // Clock for audit and lifecycle
//	WithPortProbe(probe)       // Port probe for the allocator
//	WithLifecycleOptions(...)  // Extra lifecycle manager options
package app
