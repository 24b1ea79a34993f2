package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/desklab/internal/audit"
	"github.com/firefly-engineering/desklab/internal/health"
	"github.com/firefly-engineering/desklab/internal/metrics"
	"github.com/firefly-engineering/desklab/internal/runtime"
	"github.com/firefly-engineering/desklab/internal/testutil"
)

func stopContainer(env *testutil.TestEnv, sessionID string) {
	c := env.Runtime.Containers[env.Config.ContainerName(sessionID)]
	c.Running = false
	c.Status = runtime.StatusStopped
}

func TestMonitor_New(t *testing.T) {
	env := testutil.NewTestEnv(t)

	m := New(30*time.Second, env.App.Manager)
	assert.Equal(t, 30*time.Second, m.interval)
	assert.False(t, m.autoReboot)
	assert.Nil(t, m.auditLog)
}

func TestMonitor_Options(t *testing.T) {
	env := testutil.NewTestEnv(t)

	m := New(time.Minute, env.App.Manager,
		WithAutoReboot(true),
		WithAuditLogger(env.App.Audit),
		WithClock(env.Clock),
	)
	assert.True(t, m.autoReboot)
	assert.NotNil(t, m.auditLog)
	assert.Equal(t, clockwork.Clock(env.Clock), m.clock)
}

func TestMonitor_CheckAllEmpty(t *testing.T) {
	env := testutil.NewTestEnv(t)

	m := New(time.Second, env.App.Manager)
	assert.Empty(t, m.checkAll(context.Background()))
}

func TestMonitor_CheckAllReportsStatus(t *testing.T) {
	env := testutil.NewTestEnv(t)
	running, _ := env.Launch("alice")
	stopped, _ := env.Launch("bob")
	stopContainer(env, stopped)

	m := New(time.Second, env.App.Manager)
	results := m.checkAll(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, "alice", results[0].User)
	assert.Equal(t, running, results[0].Session.ID)
	assert.NotEqual(t, health.StatusStopped, results[0].Session.Status)
	assert.Equal(t, "bob", results[1].User)
	assert.Equal(t, health.StatusStopped, results[1].Session.Status)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.SessionsByStatus.WithLabelValues(string(health.StatusStopped))))
	assert.Empty(t, env.Runtime.GetCallsFor("Restart"), "no reboot without auto-reboot")
}

func TestMonitor_AutoReboot(t *testing.T) {
	env := testutil.NewTestEnv(t)
	sid, _ := env.Launch("alice")
	stopContainer(env, sid)

	m := New(time.Second, env.App.Manager, WithAutoReboot(true))
	m.checkAll(context.Background())

	assert.Len(t, env.Runtime.GetCallsFor("Restart"), 1)
	assert.True(t, env.Runtime.Containers[env.Config.ContainerName(sid)].Running)
}

func TestMonitor_MissingContainerIsNotRebooted(t *testing.T) {
	env := testutil.NewTestEnv(t)
	require.NoError(t, env.App.Registry.Put(context.Background(), "alice", "ghost", 6100, ""))

	m := New(time.Second, env.App.Manager, WithAutoReboot(true))
	results := m.checkAll(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, health.StatusMissing, results[0].Session.Status)
	assert.Empty(t, env.Runtime.GetCallsFor("Restart"))
}

func TestMonitor_AuditsTransitionsOnly(t *testing.T) {
	env := testutil.NewTestEnv(t)
	sid, _ := env.Launch("alice")
	stopContainer(env, sid)

	m := New(time.Second, env.App.Manager, WithAuditLogger(env.App.Audit))
	ctx := context.Background()

	m.checkAll(ctx)
	m.checkAll(ctx)

	healthEvents := func() []audit.Event {
		events, err := env.App.Audit.Events("alice")
		require.NoError(t, err)
		var out []audit.Event
		for _, e := range events {
			if e.Type == audit.EventHealth {
				out = append(out, e)
			}
		}
		return out
	}

	events := healthEvents()
	require.Len(t, events, 1, "an unchanged status is recorded once")
	assert.Equal(t, sid, events[0].Session)
	assert.Equal(t, string(health.StatusStopped), events[0].Details)

	require.NoError(t, env.App.Manager.Reboot(ctx, "alice", sid))
	m.checkAll(ctx)
	assert.Len(t, healthEvents(), 2)
}

func TestMonitor_RunCancellation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Launch("alice")

	m := New(time.Minute, env.App.Manager, WithClock(env.Clock))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, env.Clock.BlockUntilContext(waitCtx, 1))
	env.Clock.Advance(time.Minute)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}
