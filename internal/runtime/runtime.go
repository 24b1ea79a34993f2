package runtime

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a container or image does not exist.
var ErrNotFound = errors.New("no such object")

// ContainerStatus represents the state of a container
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusCreated  ContainerStatus = "created"
	StatusNotFound ContainerStatus = "not-found"
	StatusUnknown  ContainerStatus = "unknown"
)

// ContainerInfo holds information about a container
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    ContainerStatus
	Running   bool
	StartedAt string
	Labels    map[string]string
}

// ImageInfo holds information about an image
type ImageInfo struct {
	ID         string
	Repository string
	Tag        string
	RepoTags   []string
	Comment    string
	Created    string
}

// Ref returns "repository:tag".
func (i *ImageInfo) Ref() string {
	return i.Repository + ":" + i.Tag
}

// ExecResult holds the result of executing a command in a container
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CreateOptions holds options for creating a container
type CreateOptions struct {
	Name    string
	Image   string
	Command []string          // Overrides the image command when set
	Labels  map[string]string // Attached to the container for later discovery
	Ports   map[int]int       // host port -> container port
	HostIP  string            // Address published ports bind to; empty means all interfaces
	Env     []string
}

// ExecOptions holds options for executing a command in a container
type ExecOptions struct {
	User       string    // User to run as
	WorkingDir string    // Working directory
	Env        []string  // Environment variables
	Stdin      io.Reader // Standard input
}

// Runtime is the interface container backends implement.
// All methods should be safe for concurrent use.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "docker", "podman")
	Name() string

	// Create creates a new container but does not start it and returns its id
	Create(ctx context.Context, opts CreateOptions) (string, error)

	// Start starts an existing container
	Start(ctx context.Context, name string) error

	// Restart restarts a container in place
	Restart(ctx context.Context, name string) error

	// Remove removes a container, killing it first when force is set
	Remove(ctx context.Context, name string, force bool) error

	// Commit snapshots a container into repo:tag with a commit message and
	// returns the new image id
	Commit(ctx context.Context, name, repo, tag, message string) (string, error)

	// Tag adds repo:tag to an existing image
	Tag(ctx context.Context, source, repo, tag string) error

	// InspectContainer returns container details or ErrNotFound
	InspectContainer(ctx context.Context, name string) (*ContainerInfo, error)

	// InspectImage returns image details or ErrNotFound
	InspectImage(ctx context.Context, ref string) (*ImageInfo, error)

	// Exec executes a command inside a container
	Exec(ctx context.Context, name string, command []string, opts ExecOptions) (*ExecResult, error)

	// CopyFrom streams a tar archive of path inside the container
	CopyFrom(ctx context.Context, name, path string) (io.ReadCloser, error)

	// Images lists the images of a repository
	Images(ctx context.Context, repo string) ([]*ImageInfo, error)

	// RemoveImage removes an image reference
	RemoveImage(ctx context.Context, ref string) error

	// ImportImage creates repo:tag from a filesystem tarball
	ImportImage(ctx context.Context, r io.Reader, repo, tag string) error

	// List returns all containers carrying the given label key
	List(ctx context.Context, label string) ([]*ContainerInfo, error)
}
