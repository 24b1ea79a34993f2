// Package runtime provides the container runtime interface used by desklab.
//
// Supported runtimes:
//   - docker
//   - podman (same CLI surface)
//
// Use New to pick a runtime from configuration ("auto" prefers podman when
// both are installed), or construct DockerRuntime directly.
//
// # Runtime Interface
//
// The Runtime interface covers what session management needs:
//   - Create, Start, Restart, Remove: Container lifecycle
//   - Commit, Tag, Images, RemoveImage, ImportImage: Saved images
//   - InspectContainer, InspectImage, List: State queries
//   - Exec, CopyFrom: Work inside a running session
//
// Missing containers and images are reported as ErrNotFound.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() to create an in-memory implementation
// that records calls and can be configured to fail specific methods.
package runtime
