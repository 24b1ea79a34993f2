package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// Finding is one mismatch between the registry and the runtime.
type Finding struct {
	User      string `json:"user"`
	SessionID string `json:"session"`
	Container string `json:"container"`
	Port      int    `json:"port,omitempty"`
}

// ReconcileReport lists registry entries without a container (stale) and
// labelled containers without a registry entry (orphans).
type ReconcileReport struct {
	Stale   []Finding `json:"stale"`
	Orphans []Finding `json:"orphans"`
	Fixed   bool      `json:"fixed"`
	Errors  []string  `json:"errors,omitempty"`
}

// Clean reports whether nothing needed fixing.
func (r *ReconcileReport) Clean() bool {
	return len(r.Stale) == 0 && len(r.Orphans) == 0
}

// Reconcile compares the registry with the session containers. With force
// it removes stale entries and destroys orphan containers; otherwise it
// only reports.
func (m *Manager) Reconcile(ctx context.Context, force bool) (report *ReconcileReport, err error) {
	start := m.clock.Now()
	defer func() { m.observe("reconcile", start, err) }()

	doc, err := m.registry.All(ctx)
	if err != nil {
		return nil, err
	}
	containers, err := m.rt.List(ctx, LabelSession)
	if err != nil {
		return nil, fmt.Errorf("failed to list session containers: %w", err)
	}

	byName := make(map[string]*runtime.ContainerInfo, len(containers))
	for _, c := range containers {
		byName[c.Name] = c
	}

	report = &ReconcileReport{Fixed: force}
	known := make(map[string]bool)
	for user, sessions := range doc {
		for sessionID, s := range sessions {
			name := m.cfg.ContainerName(sessionID)
			known[name] = true
			if _, ok := byName[name]; ok {
				continue
			}
			// Containers started before labels were added are still found
			// by name.
			if _, err := m.rt.InspectContainer(ctx, name); err == nil {
				continue
			} else if !errors.Is(err, runtime.ErrNotFound) {
				report.Errors = append(report.Errors, fmt.Sprintf("inspect %s: %v", name, err))
				continue
			}
			report.Stale = append(report.Stale, Finding{User: user, SessionID: sessionID, Container: name, Port: s.Port})
		}
	}

	for _, c := range containers {
		if known[c.Name] {
			continue
		}
		report.Orphans = append(report.Orphans, Finding{
			User:      c.Labels[LabelUser],
			SessionID: c.Labels[LabelSession],
			Container: c.Name,
		})
	}

	sortFindings(report.Stale)
	sortFindings(report.Orphans)
	metrics.ReconcileFindings.WithLabelValues("stale").Add(float64(len(report.Stale)))
	metrics.ReconcileFindings.WithLabelValues("orphan").Add(float64(len(report.Orphans)))

	if !force || report.Clean() {
		return report, nil
	}

	for _, f := range report.Stale {
		if _, err := m.registry.Remove(ctx, f.User, f.SessionID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("remove entry %s/%s: %v", f.User, f.SessionID, err))
			continue
		}
		m.record(audit.EventReconcile, f.User, f.SessionID, "removed stale registry entry")
	}
	for _, f := range report.Orphans {
		if err := m.removeContainer(ctx, f.Container); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("remove container %s: %v", f.Container, err))
			continue
		}
		user := f.User
		if user == "" {
			user = audit.SystemUser
		}
		m.record(audit.EventReconcile, user, f.SessionID, "removed orphan container "+f.Container)
	}

	return report, nil
}

func sortFindings(fs []Finding) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].User != fs[j].User {
			return fs[i].User < fs[j].User
		}
		return fs[i].Container < fs[j].Container
	})
}
