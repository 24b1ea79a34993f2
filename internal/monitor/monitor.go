// Package monitor provides background health monitoring for sessions.
package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/health"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/logging"
	"github.com/firefly-engineering/desklab/internal/metrics"
)

// CheckResult holds the result of a single session health check.
type CheckResult struct {
	User    string
	Session lifecycle.SessionInfo
}

// Monitor periodically checks the health of every registered session.
type Monitor struct {
	interval   time.Duration
	manager    *lifecycle.Manager
	clock      clockwork.Clock
	autoReboot bool
	auditLog   *audit.Logger

	// last status per session token, owned by the Run goroutine
	last map[string]health.Status
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAutoReboot enables rebooting sessions whose container has stopped.
func WithAutoReboot(enabled bool) Option {
	return func(m *Monitor) {
		m.autoReboot = enabled
	}
}

// WithAuditLogger records health status changes.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(m *Monitor) {
		m.auditLog = logger
	}
}

// WithClock sets the clock driving the check interval.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// New creates a new Monitor.
func New(interval time.Duration, manager *lifecycle.Manager, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		manager:  manager,
		clock:    clockwork.NewRealClock(),
		last:     make(map[string]health.Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting health monitor", "interval", m.interval, "autoReboot", m.autoReboot)

	m.checkAll(ctx)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("health monitor stopping")
			return ctx.Err()
		case <-ticker.Chan():
			m.checkAll(ctx)
		}
	}
}

// checkAll checks every registered session and updates the status gauge.
func (m *Monitor) checkAll(ctx context.Context) []CheckResult {
	doc, err := m.manager.Registry().All(ctx)
	if err != nil {
		logging.Warn("monitor failed to read registry", "error", err)
		return nil
	}

	userNames := make([]string, 0, len(doc))
	for user := range doc {
		userNames = append(userNames, user)
	}
	sort.Strings(userNames)

	counts := map[health.Status]int{
		health.StatusHealthy:   0,
		health.StatusUnhealthy: 0,
		health.StatusStopped:   0,
		health.StatusMissing:   0,
	}
	seen := make(map[string]bool)

	var results []CheckResult
	for _, user := range userNames {
		if ctx.Err() != nil {
			break
		}

		sessions, err := m.manager.Sessions(ctx, user)
		if err != nil {
			logging.Warn("monitor failed to list sessions", "user", user, "error", err)
			continue
		}

		for _, s := range sessions {
			results = append(results, CheckResult{User: user, Session: s})
			counts[s.Status]++
			seen[s.Token] = true
			m.recordTransition(user, s)

			if m.autoReboot && s.Status == health.StatusStopped {
				logging.Info("auto-rebooting stopped session", "user", user, "session", s.ID)
				if err := m.manager.Reboot(ctx, user, s.ID); err != nil {
					logging.Warn("auto-reboot failed", "user", user, "session", s.ID, "error", err)
				}
			}
		}
	}

	for token := range m.last {
		if !seen[token] {
			delete(m.last, token)
		}
	}
	for status, n := range counts {
		metrics.SessionsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}

	return results
}

// recordTransition writes an audit event when a session's status differs
// from the previous sweep.
func (m *Monitor) recordTransition(user string, s lifecycle.SessionInfo) {
	prev, known := m.last[s.Token]
	m.last[s.Token] = s.Status
	if known && prev == s.Status {
		return
	}
	if m.auditLog != nil {
		_ = m.auditLog.LogEvent(audit.EventHealth, user, s.ID, string(s.Status))
	}
}
