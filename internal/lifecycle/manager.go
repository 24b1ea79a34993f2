package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/docstore"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/port"
	"github.com/firefly-engineering/desklab/internal/registry"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// Container labels used to find session containers again.
const (
	LabelUser    = "desklab.user"
	LabelSession = "desklab.session"
)

// Manager runs container operations and keeps the session registry in step
// with them.
type Manager struct {
	cfg      *config.Config
	rt       runtime.Runtime
	store    docstore.Store
	registry *registry.Registry
	ports    *port.Allocator
	audit    *audit.Logger
	clock    clockwork.Clock
	newID    func() string
	log      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithAudit records lifecycle events.
func WithAudit(a *audit.Logger) Option {
	return func(m *Manager) { m.audit = a }
}

// WithClock sets the clock used for uptime and retry backoff.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// NewManager creates a Manager.
func NewManager(cfg *config.Config, rt runtime.Runtime, store docstore.Store, reg *registry.Registry, ports *port.Allocator, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		rt:       rt,
		store:    store,
		registry: reg,
		ports:    ports,
		clock:    clockwork.NewRealClock(),
		newID:    uuid.NewString,
		log:      logging.Component("lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the session registry.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Config returns the configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

func (m *Manager) record(eventType audit.EventType, user, sessionID, details string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogEvent(eventType, user, sessionID, details); err != nil {
		m.log.Warn("failed to write audit event", "type", eventType, "error", err)
	}
}

func (m *Manager) observe(op string, start time.Time, err error) {
	metrics.LifecycleOpsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
	metrics.LifecycleOpDuration.WithLabelValues(op).Observe(m.clock.Since(start).Seconds())
}

// lookup returns the registry entry for a session or a not-found error.
func (m *Manager) lookup(ctx context.Context, user, sessionID string) (registry.Session, error) {
	s, err := m.registry.GetFresh(ctx, user, sessionID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return registry.Session{}, deskerrors.SessionNotFound(user, sessionID)
		}
		return registry.Session{}, err
	}
	return s, nil
}

// removeContainer force-removes a container. A container that is already
// gone counts as removed.
func (m *Manager) removeContainer(ctx context.Context, name string) error {
	err := m.rt.Remove(ctx, name, true)
	if err == nil || errors.Is(err, runtime.ErrNotFound) {
		return nil
	}
	return err
}

// startContainer creates and starts a session container publishing the
// display port on hostPort. On failure no container is left behind.
func (m *Manager) startContainer(ctx context.Context, name, image, user, sessionID string, hostPort int) error {
	_, err := m.rt.Create(ctx, runtime.CreateOptions{
		Name:  name,
		Image: image,
		Labels: map[string]string{
			LabelUser:    user,
			LabelSession: sessionID,
		},
		Ports:  map[int]int{hostPort: m.cfg.DisplayPort},
		HostIP: "127.0.0.1",
	})
	if err != nil {
		m.discard(ctx, name)
		return deskerrors.ExternalFailure("container create", err)
	}

	if err := m.rt.Start(ctx, name); err != nil {
		m.discard(ctx, name)
		return deskerrors.ExternalFailure("container start", err)
	}
	return nil
}

// discard removes a partially created container, logging failures.
func (m *Manager) discard(ctx context.Context, name string) {
	if err := m.removeContainer(context.WithoutCancel(ctx), name); err != nil {
		m.log.Warn("failed to remove partial container", "container", name, "error", err)
	}
}
