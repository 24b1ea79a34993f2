package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/config"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/health"
	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/runtime"
	"github.com/firefly-engineering/desklab/internal/token"
)

// SessionInfo describes a registered session for display.
type SessionInfo struct {
	ID         string        `json:"id"`
	Port       int           `json:"port"`
	Token      string        `json:"token"`
	Credential string        `json:"credential"`
	Container  string        `json:"container"`
	Image      string        `json:"image"`
	Uptime     string        `json:"uptime"`
	Status     health.Status `json:"status"`
}

// Launch starts a new session for user from imageRef and registers it with
// an empty credential. Only base images and the user's own saved images may
// be launched.
func (m *Manager) Launch(ctx context.Context, user, imageRef string) (sessionID string, hostPort int, err error) {
	start := m.clock.Now()
	defer func() { m.observe("launch", start, err) }()

	if err := config.ValidateUserName(user); err != nil {
		return "", 0, deskerrors.ValidationError(err.Error())
	}
	if imageRef == "" {
		return "", 0, deskerrors.ValidationError("image is required")
	}
	repo, _ := runtime.SplitRef(imageRef)
	if repo != m.cfg.BaseRepo && repo != m.cfg.UserRepo(user) {
		return "", 0, deskerrors.Forbidden(user, "launch "+imageRef)
	}

	taken, err := m.registry.Ports(ctx)
	if err != nil {
		return "", 0, err
	}
	hostPort, err = m.ports.Next(0, taken)
	if err != nil {
		metrics.PortAllocationFailures.Inc()
		return "", 0, err
	}

	sessionID = m.newID()
	name := m.cfg.ContainerName(sessionID)
	m.log.Debug("launching session", "user", user, "session", sessionID, "image", imageRef, "port", hostPort)

	if err := m.startContainer(ctx, name, imageRef, user, sessionID, hostPort); err != nil {
		m.record(audit.EventError, user, sessionID, "launch: "+err.Error())
		return "", 0, err
	}

	if err := m.registry.Put(ctx, user, sessionID, hostPort, ""); err != nil {
		m.discard(ctx, name)
		return "", 0, err
	}

	m.record(audit.EventLaunch, user, sessionID, fmt.Sprintf("image=%s port=%d", imageRef, hostPort))
	return sessionID, hostPort, nil
}

// Reboot restarts the session container in place.
func (m *Manager) Reboot(ctx context.Context, user, sessionID string) (err error) {
	start := m.clock.Now()
	defer func() { m.observe("reboot", start, err) }()

	if _, err := m.lookup(ctx, user, sessionID); err != nil {
		return err
	}
	if err := m.rt.Restart(ctx, m.cfg.ContainerName(sessionID)); err != nil {
		return deskerrors.ExternalFailure("container restart", err)
	}

	m.record(audit.EventReboot, user, sessionID, "")
	return nil
}

// Reset replaces the session container with a fresh one from the same image,
// keeping the session id and port. The new container starts without a
// credential. If the container is gone or the replacement cannot be started
// the session is dropped from the registry.
func (m *Manager) Reset(ctx context.Context, user, sessionID string) (err error) {
	start := m.clock.Now()
	defer func() { m.observe("reset", start, err) }()

	s, err := m.lookup(ctx, user, sessionID)
	if err != nil {
		return err
	}

	name := m.cfg.ContainerName(sessionID)
	info, err := m.rt.InspectContainer(ctx, name)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			m.dropEntry(ctx, user, sessionID)
		}
		return deskerrors.ExternalFailure("container inspect", err)
	}

	if err := m.removeContainer(ctx, name); err != nil {
		return deskerrors.ExternalFailure("container remove", err)
	}

	if err := m.startContainer(ctx, name, info.Image, user, sessionID, s.Port); err != nil {
		m.dropEntry(ctx, user, sessionID)
		m.record(audit.EventError, user, sessionID, "reset: "+err.Error())
		return err
	}

	if err := m.registry.Put(ctx, user, sessionID, s.Port, ""); err != nil {
		return err
	}

	m.record(audit.EventReset, user, sessionID, "image="+info.Image)
	return nil
}

// dropEntry removes a registry entry whose container could not be kept.
func (m *Manager) dropEntry(ctx context.Context, user, sessionID string) {
	if _, err := m.registry.Remove(context.WithoutCancel(ctx), user, sessionID); err != nil {
		m.log.Error("failed to remove registry entry", "user", user, "session", sessionID, "error", err)
	}
}

// Destroy removes the session container and its registry entry. A container
// that is already gone is not an error. When the registry update fails after
// the container is gone, the entry is left for Reconcile.
func (m *Manager) Destroy(ctx context.Context, user, sessionID string) (err error) {
	start := m.clock.Now()
	defer func() { m.observe("destroy", start, err) }()

	if _, err := m.lookup(ctx, user, sessionID); err != nil {
		return err
	}

	name := m.cfg.ContainerName(sessionID)
	if err := m.removeContainer(ctx, name); err != nil {
		return deskerrors.ExternalFailure("container remove", err)
	}

	if _, err := m.registry.Remove(ctx, user, sessionID); err != nil {
		m.log.Error("container removed but registry entry remains", "user", user, "session", sessionID, "error", err)
		return err
	}

	m.record(audit.EventDestroy, user, sessionID, "")
	return nil
}

// Sessions lists a user's sessions from the cached registry snapshot,
// enriched with container state.
func (m *Manager) Sessions(ctx context.Context, user string) ([]SessionInfo, error) {
	entries, err := m.registry.List(ctx, user)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(entries))
	for sessionID, s := range entries {
		name := m.cfg.ContainerName(sessionID)
		check := health.Check(ctx, m.rt, name, s.Port, m.clock)
		infos = append(infos, SessionInfo{
			ID:         sessionID,
			Port:       s.Port,
			Token:      token.Format(user, sessionID),
			Credential: s.Credential,
			Container:  name,
			Image:      check.Image,
			Uptime:     check.Uptime,
			Status:     check.Status,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// DownloadHome streams a tar archive of the session's /home. The caller
// closes the reader.
func (m *Manager) DownloadHome(ctx context.Context, user, sessionID string) (rc io.ReadCloser, filename string, err error) {
	if _, err := m.lookup(ctx, user, sessionID); err != nil {
		return nil, "", err
	}

	name := m.cfg.ContainerName(sessionID)
	rc, err = m.rt.CopyFrom(ctx, name, "/home")
	if err != nil {
		return nil, "", deskerrors.ExternalFailure("copy home directory", err)
	}
	return rc, name + "_homedir.tar", nil
}

// WaitForDisplay polls until the session's display port accepts
// connections or the timeout passes.
func (m *Manager) WaitForDisplay(ctx context.Context, hostPort int, timeout time.Duration) bool {
	deadline := m.clock.Now().Add(timeout)
	for {
		if health.CheckDisplay(ctx, hostPort) {
			return true
		}
		if m.clock.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-m.clock.After(500 * time.Millisecond):
		}
	}
}
