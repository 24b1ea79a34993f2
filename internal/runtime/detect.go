package runtime

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/firefly-engineering/desklab/internal/logging"
)

// RuntimeType identifies which container runtime to use
type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeAuto   RuntimeType = "auto"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Detect determines which container CLI is available on the system.
func Detect() (RuntimeType, error) {
	if _, err := lookPath("podman"); err == nil {
		logging.Debug("detected podman")
		return RuntimePodman, nil
	}
	if _, err := lookPath("docker"); err == nil {
		logging.Debug("detected docker")
		return RuntimeDocker, nil
	}
	return "", fmt.Errorf("no supported container runtime found (tried: podman, docker)")
}

// New creates a Runtime for the configured command. The command may be a
// bare name, an absolute path, or "auto".
func New(command string) (Runtime, error) {
	if command == "" || RuntimeType(command) == RuntimeAuto {
		detected, err := Detect()
		if err != nil {
			return nil, err
		}
		command = string(detected)
	}

	switch RuntimeType(filepath.Base(command)) {
	case RuntimeDocker, RuntimePodman:
	default:
		return nil, fmt.Errorf("unknown runtime type: %s", command)
	}

	if _, err := lookPath(command); err != nil {
		return nil, fmt.Errorf("%s not found: %w", command, err)
	}

	logging.Debug("creating runtime", "command", command)
	return NewDockerRuntime(command), nil
}
