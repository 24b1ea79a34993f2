package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/desklab/internal/app"
	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

const (
	envEnable    = "DESKLAB_INTEGRATION_TESTS"
	envImage     = "DESKLAB_TEST_IMAGE"
	defaultImage = "busybox:latest"
)

// TestHarness provides utilities for integration testing with real containers.
type TestHarness struct {
	t         *testing.T
	tempDir   string
	config    *config.Config
	app       *app.App
	rt        runtime.Runtime
	baseImage string
	users     []string
}

// Enabled reports whether integration tests were requested.
func Enabled() bool {
	return os.Getenv(envEnable) != ""
}

// TestImage returns the image sessions are launched from.
func TestImage() string {
	if img := os.Getenv(envImage); img != "" {
		return img
	}
	return defaultImage
}

// configTemplate isolates state under a temporary directory. Repositories
// and container names carry a suffix so parallel runs do not collide.
const configTemplate = `
state_dir = %q
base_repo = "desklab-it-%[2]s"
user_repo_prefix = "desklab-it-%[2]s_"
container_prefix = "desklab-it-%[2]s-"

[store]
backend = "file"
path = %[3]q
`

// TestConfig returns a configuration rooted at dir.
func TestConfig(dir, suffix string) (*config.Config, error) {
	return config.Parse(fmt.Sprintf(configTemplate, dir, suffix, filepath.Join(dir, "documents")))
}

// NewHarness creates a new test harness.
// It will skip the test if DESKLAB_INTEGRATION_TESTS is not set or no
// container runtime responds.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if !Enabled() {
		t.Skipf("integration tests disabled (set %s=1 to enable)", envEnable)
	}

	tempDir := t.TempDir()
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	cfg, err := TestConfig(tempDir, suffix)
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}

	rt, err := runtime.New("auto")
	if err != nil {
		t.Skipf("no container runtime available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rt.List(ctx, lifecycle.LabelUser); err != nil {
		t.Skipf("%s not responsive: %v", rt.Name(), err)
	}

	h := &TestHarness{
		t:         t,
		tempDir:   tempDir,
		config:    cfg,
		rt:        rt,
		baseImage: cfg.BaseRepo + ":base",
	}
	t.Cleanup(h.Cleanup)

	if err := h.tagBaseImage(); err != nil {
		t.Skipf("test image %s unavailable: %v", TestImage(), err)
	}

	a, err := app.New(context.Background(), app.WithConfig(cfg), app.WithRuntime(rt))
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	h.app = a

	return h
}

func (h *TestHarness) tagBaseImage() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	src := TestImage()
	if _, err := h.rt.InspectImage(ctx, src); errors.Is(err, runtime.ErrNotFound) {
		return fmt.Errorf("image not present locally (pull %s first)", src)
	} else if err != nil {
		return err
	}
	repo, tag := runtime.SplitRef(h.baseImage)
	return h.rt.Tag(ctx, src, repo, tag)
}

// Config returns the isolated configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// App returns the application wired to the real runtime.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Runtime returns the container runtime.
func (h *TestHarness) Runtime() runtime.Runtime {
	return h.rt
}

// BaseImage returns the base image reference sessions launch from.
func (h *TestHarness) BaseImage() string {
	return h.baseImage
}

// Launch starts a session for user from the base image and fails the test
// on error.
func (h *TestHarness) Launch(user string) (string, int) {
	h.t.Helper()

	h.TrackUser(user)
	id, port, err := h.app.Manager.Launch(context.Background(), user, h.baseImage)
	if err != nil {
		h.t.Fatalf("Launch(%s) failed: %v", user, err)
	}
	return id, port
}

// TrackUser registers user for cleanup of sessions and saved images.
func (h *TestHarness) TrackUser(user string) {
	for _, u := range h.users {
		if u == user {
			return
		}
	}
	h.users = append(h.users, user)
}

// Cleanup removes all created sessions, saved images and the base tag.
func (h *TestHarness) Cleanup() {
	ctx := context.Background()

	if h.app != nil {
		for _, user := range h.users {
			sessions, err := h.app.Manager.Sessions(ctx, user)
			if err != nil {
				h.t.Logf("Warning: failed to list sessions of %s: %v", user, err)
				continue
			}
			for _, s := range sessions {
				if err := h.app.Manager.Destroy(ctx, user, s.ID); err != nil {
					h.t.Logf("Warning: failed to destroy session %s: %v", s.ID, err)
				}
			}
			images, err := h.rt.Images(ctx, h.config.UserRepo(user))
			if err != nil {
				continue
			}
			for _, img := range images {
				if err := h.rt.RemoveImage(ctx, img.Ref()); err != nil {
					h.t.Logf("Warning: failed to remove image %s: %v", img.Ref(), err)
				}
			}
		}
		if err := h.app.Close(); err != nil {
			h.t.Logf("Warning: failed to close app: %v", err)
		}
	}

	if err := h.rt.RemoveImage(ctx, h.baseImage); err != nil && !errors.Is(err, runtime.ErrNotFound) {
		h.t.Logf("Warning: failed to remove base image %s: %v", h.baseImage, err)
	}
}

// RequireRunning skips the test if the named container is not running.
func (h *TestHarness) RequireRunning(name string) {
	h.t.Helper()

	info, err := h.rt.InspectContainer(context.Background(), name)
	if err != nil {
		h.t.Skipf("failed to inspect %s: %v", name, err)
	}
	if !info.Running {
		h.t.Skipf("container %s is not running", name)
	}
}
