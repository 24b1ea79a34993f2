package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"

	"github.com/firefly-engineering/desklab/internal/logging"
)

// DockerRuntime implements the Runtime interface using the Docker or Podman CLI.
type DockerRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string
}

// NewDockerRuntime creates a new Docker/Podman runtime.
func NewDockerRuntime(command string) *DockerRuntime {
	return &DockerRuntime{Command: command}
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return r.Command
}

// isNotFound matches the "No such container/image/object" family of messages
// emitted by both docker and podman.
func isNotFound(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "no such")
}

// runCmd executes a docker/podman command
func (r *DockerRuntime) runCmd(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = stdin

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if isNotFound(msg) {
			return "", fmt.Errorf("%s %s failed: %s: %w", r.Command, args[0], msg, errors.Join(ErrNotFound, err))
		}
		return "", fmt.Errorf("%s %s failed: %s: %w", r.Command, args[0], msg, err)
	}

	return stdout.String(), nil
}

// createArgs builds the argument list for "create".
func createArgs(opts CreateOptions) []string {
	args := []string{"create", "--name", opts.Name}

	labelKeys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		labelKeys = append(labelKeys, k)
	}
	sort.Strings(labelKeys)
	for _, k := range labelKeys {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}

	hostPorts := make([]int, 0, len(opts.Ports))
	for hostPort := range opts.Ports {
		hostPorts = append(hostPorts, hostPort)
	}
	sort.Ints(hostPorts)
	for _, hostPort := range hostPorts {
		if opts.HostIP != "" {
			args = append(args, "-p", fmt.Sprintf("%s:%d:%d", opts.HostIP, hostPort, opts.Ports[hostPort]))
		} else {
			args = append(args, "-p", fmt.Sprintf("%d:%d", hostPort, opts.Ports[hostPort]))
		}
	}

	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)
	return args
}

// Create creates a new container and returns its id
func (r *DockerRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	logging.Debug("creating container", "name", opts.Name, "image", opts.Image, "runtime", r.Command)

	output, err := r.runCmd(ctx, nil, createArgs(opts)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Start starts an existing container
func (r *DockerRuntime) Start(ctx context.Context, name string) error {
	logging.Debug("starting container", "container", name)

	_, err := r.runCmd(ctx, nil, "start", name)
	return err
}

// Restart restarts a container in place
func (r *DockerRuntime) Restart(ctx context.Context, name string) error {
	logging.Debug("restarting container", "container", name)

	_, err := r.runCmd(ctx, nil, "restart", name)
	return err
}

// Remove removes a container
func (r *DockerRuntime) Remove(ctx context.Context, name string, force bool) error {
	logging.Debug("removing container", "container", name, "force", force)

	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	_, err := r.runCmd(ctx, nil, append(args, name)...)
	return err
}

// Commit snapshots a container into repo:tag
func (r *DockerRuntime) Commit(ctx context.Context, name, repo, tag, message string) (string, error) {
	logging.Debug("committing container", "container", name, "repo", repo, "tag", tag)

	output, err := r.runCmd(ctx, nil, "commit", "-m", message, name, repo+":"+tag)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Tag adds repo:tag to an existing image
func (r *DockerRuntime) Tag(ctx context.Context, source, repo, tag string) error {
	logging.Debug("tagging image", "source", source, "repo", repo, "tag", tag)

	_, err := r.runCmd(ctx, nil, "tag", source, repo+":"+tag)
	return err
}

// dockerContainerInspect holds the relevant fields from container inspect
type dockerContainerInspect struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	State struct {
		Status    string `json:"Status"`
		Running   bool   `json:"Running"`
		StartedAt string `json:"StartedAt"`
	} `json:"State"`
}

func parseContainerInspect(output string) (*ContainerInfo, error) {
	var inspects []dockerContainerInspect
	if err := json.Unmarshal([]byte(output), &inspects); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}
	if len(inspects) == 0 {
		return nil, ErrNotFound
	}

	inspect := inspects[0]
	info := &ContainerInfo{
		ID:        inspect.ID,
		Name:      strings.TrimPrefix(inspect.Name, "/"),
		Image:     inspect.Config.Image,
		Running:   inspect.State.Running,
		StartedAt: inspect.State.StartedAt,
		Labels:    inspect.Config.Labels,
	}

	switch inspect.State.Status {
	case "running":
		info.Status = StatusRunning
	case "exited", "stopped":
		info.Status = StatusStopped
	case "created", "configured":
		info.Status = StatusCreated
	default:
		info.Status = StatusUnknown
	}

	return info, nil
}

// InspectContainer returns container details
func (r *DockerRuntime) InspectContainer(ctx context.Context, name string) (*ContainerInfo, error) {
	output, err := r.runCmd(ctx, nil, "container", "inspect", name)
	if err != nil {
		return nil, err
	}
	return parseContainerInspect(output)
}

// dockerImageInspect holds the relevant fields from image inspect
type dockerImageInspect struct {
	ID       string   `json:"Id"`
	RepoTags []string `json:"RepoTags"`
	Comment  string   `json:"Comment"`
	Created  string   `json:"Created"`
}

func parseImageInspect(ref, output string) (*ImageInfo, error) {
	var inspects []dockerImageInspect
	if err := json.Unmarshal([]byte(output), &inspects); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}
	if len(inspects) == 0 {
		return nil, ErrNotFound
	}

	inspect := inspects[0]
	repo, tag := SplitRef(ref)
	return &ImageInfo{
		ID:         inspect.ID,
		Repository: repo,
		Tag:        tag,
		RepoTags:   inspect.RepoTags,
		Comment:    inspect.Comment,
		Created:    inspect.Created,
	}, nil
}

// InspectImage returns image details
func (r *DockerRuntime) InspectImage(ctx context.Context, ref string) (*ImageInfo, error) {
	output, err := r.runCmd(ctx, nil, "image", "inspect", ref)
	if err != nil {
		return nil, err
	}
	return parseImageInspect(ref, output)
}

// Exec executes a command inside a container
func (r *DockerRuntime) Exec(ctx context.Context, name string, command []string, opts ExecOptions) (*ExecResult, error) {
	args := []string{"exec"}

	if opts.Stdin != nil {
		args = append(args, "-i")
	}

	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}

	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}

	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}

	args = append(args, name)
	args = append(args, command...)

	cmd := exec.CommandContext(ctx, r.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	err := cmd.Run()

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, fmt.Errorf("exec failed: %w", err)
		}
	}

	return result, nil
}

// cmdReader closes the pipe and reaps the CLI process.
type cmdReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

func (c *cmdReader) Close() error {
	_ = c.ReadCloser.Close()
	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %s: %w", c.cmd.Path, strings.TrimSpace(c.stderr.String()), err)
	}
	return nil
}

// CopyFrom streams a tar archive of path inside the container
func (r *DockerRuntime) CopyFrom(ctx context.Context, name, path string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, r.Command, "cp", name+":"+path, "-")
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cp failed: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cp failed: %w", err)
	}

	return &cmdReader{ReadCloser: stdout, cmd: cmd, stderr: stderr}, nil
}

// dockerImageLine is one line of "images --format {{json .}}"
type dockerImageLine struct {
	ID         string `json:"ID"`
	Repository string `json:"Repository"`
	Tag        string `json:"Tag"`
	CreatedAt  string `json:"CreatedAt"`
}

func parseImages(output string) ([]*ImageInfo, error) {
	var images []*ImageInfo
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var img dockerImageLine
		if err := json.Unmarshal([]byte(line), &img); err != nil {
			return nil, fmt.Errorf("failed to parse image listing: %w", err)
		}
		if img.Tag == "" || img.Tag == "<none>" {
			continue
		}
		images = append(images, &ImageInfo{
			ID:         img.ID,
			Repository: img.Repository,
			Tag:        img.Tag,
			RepoTags:   []string{img.Repository + ":" + img.Tag},
			Created:    img.CreatedAt,
		})
	}
	return images, scanner.Err()
}

// Images lists the images of a repository
func (r *DockerRuntime) Images(ctx context.Context, repo string) ([]*ImageInfo, error) {
	output, err := r.runCmd(ctx, nil, "images", "--format", "{{json .}}", repo)
	if err != nil {
		return nil, err
	}
	return parseImages(output)
}

// RemoveImage removes an image reference
func (r *DockerRuntime) RemoveImage(ctx context.Context, ref string) error {
	logging.Debug("removing image", "ref", ref)

	_, err := r.runCmd(ctx, nil, "rmi", ref)
	return err
}

// ImportImage creates repo:tag from a filesystem tarball
func (r *DockerRuntime) ImportImage(ctx context.Context, rd io.Reader, repo, tag string) error {
	logging.Debug("importing image", "repo", repo, "tag", tag)

	_, err := r.runCmd(ctx, rd, "import", "-", repo+":"+tag)
	return err
}

// List returns all containers carrying the given label key
func (r *DockerRuntime) List(ctx context.Context, label string) ([]*ContainerInfo, error) {
	output, err := r.runCmd(ctx, nil, "ps", "-a", "--format", "{{.Names}}", "--filter", "label="+label)
	if err != nil {
		return nil, err
	}

	var containers []*ContainerInfo
	for _, name := range strings.Split(strings.TrimSpace(output), "\n") {
		if name == "" {
			continue
		}

		info, err := r.InspectContainer(ctx, name)
		if err != nil {
			// removed between ps and inspect
			continue
		}
		containers = append(containers, info)
	}

	return containers, nil
}

// SplitRef splits "repo:tag" on the last colon that is not part of a
// registry host. A missing tag yields "latest".
func SplitRef(ref string) (repo, tag string) {
	i := strings.LastIndex(ref, ":")
	if i < 0 || strings.Contains(ref[i+1:], "/") {
		return ref, "latest"
	}
	return ref[:i], ref[i+1:]
}

// Ensure DockerRuntime implements Runtime
var _ Runtime = (*DockerRuntime)(nil)
