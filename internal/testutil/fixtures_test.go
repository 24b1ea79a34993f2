package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/desklab/internal/app"
	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/registry"
)

func TestValidConfig(t *testing.T) {
	cfg, err := ValidConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9080", cfg.ListenAddr)
	assert.Equal(t, 7000, cfg.PortRange.From)
	assert.Equal(t, 7099, cfg.PortRange.To)
	assert.Equal(t, "podman", cfg.Runtime.Command)
	assert.Equal(t, 15*time.Second, cfg.RotateTimeout.Duration)
	assert.Equal(t, "desk", cfg.DisplayUser)
	assert.Equal(t, []string{"desk.example.com"}, cfg.Relay.AllowedOrigins)
	assert.True(t, cfg.Log.Verbose)
	assert.Equal(t, "dockerlabconfig:container", cfg.Store.RegistryRef)
}

func TestInvalidConfig(t *testing.T) {
	assert.Error(t, InvalidConfig())
}

func TestRegistryDocument(t *testing.T) {
	doc, err := RegistryDocument()
	require.NoError(t, err)

	assert.Equal(t, registry.Session{Port: 6002, Credential: "hunter2"}, doc["alice"]["c2"])
	assert.Len(t, doc["bob"], 1)
}

func TestNewTestEnv(t *testing.T) {
	env := NewTestEnv(t)
	assert.Same(t, env.App, app.Default)

	env.AddUser("alice", "password1", authz.RoleUser)
	subject, err := env.App.Users.Authenticate(context.Background(), "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", subject.Name)

	sid, port := env.Launch("alice")
	assert.Equal(t, 6000, port)
	assert.True(t, env.SessionExists("alice", sid))
	assert.True(t, env.Runtime.HasContainer(env.Config.ContainerName(sid)))

	env.AddImage("dockerlab:dev", "Dev", "Tools")
	assert.Equal(t, "Dev", env.Manager().ReadMetadata(context.Background(), "dockerlab:dev").Name)
}
