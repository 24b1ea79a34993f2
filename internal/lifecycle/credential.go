package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firefly-engineering/desklab/internal/audit"
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/retry"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// rotateBackoff is the pause before the single retry of a credential change.
const rotateBackoff = 500 * time.Millisecond

// RotateCredential sets the display password inside the session container
// and records it in the registry. The credential reaches the container on
// stdin. If the command fails the registry keeps the previous credential.
func (m *Manager) RotateCredential(ctx context.Context, user, sessionID, credential string) (err error) {
	start := m.clock.Now()
	defer func() { m.observe("rotate-credential", start, err) }()

	if _, err := m.lookup(ctx, user, sessionID); err != nil {
		return err
	}

	argv, err := m.cfg.CredentialArgv()
	if err != nil {
		return deskerrors.ConfigError("invalid credential command", err)
	}

	name := m.cfg.ContainerName(sessionID)
	policy := retry.Policy{
		MaxAttempts:    2,
		InitialBackoff: rotateBackoff,
		AttemptTimeout: m.cfg.RotateTimeout.Duration,
		Clock:          m.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			metrics.CredentialRotationRetries.Inc()
			m.log.Warn("credential change failed, retrying", "session", sessionID, "attempt", attempt, "error", err)
		},
	}
	classify := func(err error) retry.Action {
		if errors.Is(err, runtime.ErrNotFound) {
			return retry.Stop
		}
		return retry.Retry
	}

	err = retry.DoVoid(ctx, policy, classify, func(ctx context.Context) error {
		res, err := m.rt.Exec(ctx, name, argv, runtime.ExecOptions{
			User:  m.cfg.DisplayUser,
			Stdin: strings.NewReader(credential + "\n"),
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("credential command exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return nil
	})
	if err != nil {
		m.record(audit.EventError, user, sessionID, "rotate-credential: "+err.Error())
		return deskerrors.ExternalFailure("credential change", err)
	}

	ok, err := m.registry.SetCredential(ctx, user, sessionID, credential)
	if err != nil {
		return err
	}
	if !ok {
		return deskerrors.SessionNotFound(user, sessionID)
	}

	m.record(audit.EventRotate, user, sessionID, "")
	return nil
}
