// Package testutil provides a wired test environment and fixtures
package testutil

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/firefly-engineering/desklab/internal/app"
	"github.com/firefly-engineering/desklab/internal/authz"
	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/docstore"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// BaseImage is the image every test environment starts with.
const BaseImage = "dockerlab:base"

// TestEnv holds the test environment
type TestEnv struct {
	T       *testing.T
	TmpDir  string
	Config  *config.Config
	Runtime *runtime.MockRuntime
	Store   *docstore.MemoryStore
	Clock   *clockwork.FakeClock
	App     *app.App
}

// NewTestEnv creates an App on a mock runtime and an in-memory store, and
// installs it as app.Default for the duration of the test. Every port
// probes as free.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.StateDir = tmpDir
	cfg.Store.Backend = config.BackendMemory

	mockRuntime := runtime.NewMockRuntime()
	mockRuntime.AddImage(BaseImage, "")
	store := docstore.NewMemoryStore()
	clock := clockwork.NewFakeClock()

	testApp, err := app.New(context.Background(),
		app.WithConfig(cfg),
		app.WithRuntime(mockRuntime),
		app.WithStore(store),
		app.WithClock(clock),
		app.WithPortProbe(func(int) bool { return true }),
	)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	testApp.Users.SetCost(bcrypt.MinCost)

	originalDefault := app.Default
	app.SetDefault(testApp)
	t.Cleanup(func() { app.SetDefault(originalDefault) })

	return &TestEnv{
		T:       t,
		TmpDir:  tmpDir,
		Config:  cfg,
		Runtime: mockRuntime,
		Store:   store,
		Clock:   clock,
		App:     testApp,
	}
}

// Manager returns the lifecycle manager.
func (e *TestEnv) Manager() *lifecycle.Manager {
	return e.App.Manager
}

// AddUser creates an account.
func (e *TestEnv) AddUser(name, password string, role authz.Role) {
	e.T.Helper()

	if err := e.App.Users.Add(context.Background(), name, password, role, ""); err != nil {
		e.T.Fatalf("Failed to add user %s: %v", name, err)
	}
}

// AddImage adds an image with a stored descriptor.
func (e *TestEnv) AddImage(ref, name, desc string) {
	e.T.Helper()

	e.Runtime.AddImage(ref, "")
	r, err := docstore.ParseRef(ref)
	if err != nil {
		e.T.Fatalf("Invalid image ref %s: %v", ref, err)
	}
	if err := docstore.WriteMetadata(context.Background(), e.Store, r, docstore.ImageMetadata{Name: name, Desc: desc}); err != nil {
		e.T.Fatalf("Failed to write metadata for %s: %v", ref, err)
	}
}

// Launch starts a session from the base image.
func (e *TestEnv) Launch(user string) (string, int) {
	e.T.Helper()

	sid, port, err := e.App.Manager.Launch(context.Background(), user, BaseImage)
	if err != nil {
		e.T.Fatalf("Failed to launch session for %s: %v", user, err)
	}
	return sid, port
}

// SessionExists reports whether the registry holds a session.
func (e *TestEnv) SessionExists(user, sessionID string) bool {
	_, err := e.App.Registry.GetFresh(context.Background(), user, sessionID)
	return err == nil
}
