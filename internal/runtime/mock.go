package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MockRuntime is an in-memory implementation of Runtime for testing
type MockRuntime struct {
	mu sync.Mutex

	// Containers tracks the state of mock containers by name
	Containers map[string]*ContainerInfo

	// Images tracks mock images by "repo:tag"
	ImageRefs map[string]*ImageInfo

	// ExecResults maps container names to predefined exec results
	ExecResults map[string]*ExecResult

	// ExecHook, when set, decides every Exec call
	ExecHook func(name string, command []string) (*ExecResult, error)

	// Files maps "container:path" to the bytes CopyFrom returns
	Files map[string][]byte

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall

	nextID int
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []any
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Containers:  make(map[string]*ContainerInfo),
		ImageRefs:   make(map[string]*ImageInfo),
		ExecResults: make(map[string]*ExecResult),
		Files:       make(map[string][]byte),
		Errors:      make(map[string]error),
		CallLog:     make([]MockCall, 0),
	}
}

func (m *MockRuntime) record(method string, args ...any) error {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
	return m.Errors[method]
}

func (m *MockRuntime) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s%012d", prefix, m.nextID)
}

// SetError sets an error to be returned for a specific operation.
// A nil error clears it.
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Errors, operation)
		return
	}
	m.Errors[operation] = err
}

// SetExecResult sets the result for exec operations on a container
func (m *MockRuntime) SetExecResult(name string, result *ExecResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecResults[name] = result
}

// AddContainer adds a running container to the mock
func (m *MockRuntime) AddContainer(name, image string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers[name] = &ContainerInfo{
		ID:        m.id("c"),
		Name:      name,
		Image:     image,
		Status:    StatusRunning,
		Running:   true,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Labels:    labels,
	}
}

// AddImage adds an image to the mock
func (m *MockRuntime) AddImage(ref, comment string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addImage(ref, comment)
}

func (m *MockRuntime) addImage(ref, comment string) {
	repo, tag := SplitRef(ref)
	m.ImageRefs[repo+":"+tag] = &ImageInfo{
		ID:         m.id("sha256:"),
		Repository: repo,
		Tag:        tag,
		RepoTags:   []string{repo + ":" + tag},
		Comment:    comment,
		Created:    time.Now().UTC().Format(time.RFC3339),
	}
}

// HasContainer reports whether a container exists
func (m *MockRuntime) HasContainer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Containers[name]
	return ok
}

// HasImage reports whether an image reference exists
func (m *MockRuntime) HasImage(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, tag := SplitRef(ref)
	_, ok := m.ImageRefs[repo+":"+tag]
	return ok
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// Create creates a new stopped container
func (m *MockRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Create", opts); err != nil {
		return "", err
	}

	if _, ok := m.Containers[opts.Name]; ok {
		return "", fmt.Errorf("container name %q is already in use", opts.Name)
	}
	repo, tag := SplitRef(opts.Image)
	if _, ok := m.ImageRefs[repo+":"+tag]; !ok {
		return "", fmt.Errorf("image %s: %w", opts.Image, ErrNotFound)
	}

	labels := make(map[string]string, len(opts.Labels))
	for k, v := range opts.Labels {
		labels[k] = v
	}
	info := &ContainerInfo{
		ID:     m.id("c"),
		Name:   opts.Name,
		Image:  opts.Image,
		Status: StatusCreated,
		Labels: labels,
	}
	m.Containers[opts.Name] = info
	return info.ID, nil
}

func (m *MockRuntime) container(name string) (*ContainerInfo, error) {
	c, ok := m.Containers[name]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", name, ErrNotFound)
	}
	return c, nil
}

func (m *MockRuntime) run(c *ContainerInfo) {
	c.Status = StatusRunning
	c.Running = true
	c.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
}

// Start starts an existing container
func (m *MockRuntime) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Start", name); err != nil {
		return err
	}

	c, err := m.container(name)
	if err != nil {
		return err
	}
	m.run(c)
	return nil
}

// Restart restarts a container
func (m *MockRuntime) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Restart", name); err != nil {
		return err
	}

	c, err := m.container(name)
	if err != nil {
		return err
	}
	m.run(c)
	return nil
}

// Remove removes a container
func (m *MockRuntime) Remove(ctx context.Context, name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Remove", name, force); err != nil {
		return err
	}

	c, err := m.container(name)
	if err != nil {
		return err
	}
	if c.Running && !force {
		return fmt.Errorf("container %s is running", name)
	}
	delete(m.Containers, name)
	return nil
}

// Commit snapshots a container into repo:tag
func (m *MockRuntime) Commit(ctx context.Context, name, repo, tag, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Commit", name, repo, tag, message); err != nil {
		return "", err
	}

	if _, err := m.container(name); err != nil {
		return "", err
	}
	m.addImage(repo+":"+tag, message)
	return m.ImageRefs[repo+":"+tag].ID, nil
}

// Tag adds repo:tag to an existing image
func (m *MockRuntime) Tag(ctx context.Context, source, repo, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Tag", source, repo, tag); err != nil {
		return err
	}

	srcRepo, srcTag := SplitRef(source)
	src, ok := m.ImageRefs[srcRepo+":"+srcTag]
	if !ok {
		return fmt.Errorf("image %s: %w", source, ErrNotFound)
	}
	cp := *src
	cp.Repository = repo
	cp.Tag = tag
	cp.RepoTags = []string{repo + ":" + tag}
	m.ImageRefs[repo+":"+tag] = &cp
	return nil
}

// InspectContainer returns container details
func (m *MockRuntime) InspectContainer(ctx context.Context, name string) (*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("InspectContainer", name); err != nil {
		return nil, err
	}

	c, err := m.container(name)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

// InspectImage returns image details
func (m *MockRuntime) InspectImage(ctx context.Context, ref string) (*ImageInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("InspectImage", ref); err != nil {
		return nil, err
	}

	repo, tag := SplitRef(ref)
	img, ok := m.ImageRefs[repo+":"+tag]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", ref, ErrNotFound)
	}
	cp := *img
	return &cp, nil
}

// Exec executes a command inside a container
func (m *MockRuntime) Exec(ctx context.Context, name string, command []string, opts ExecOptions) (*ExecResult, error) {
	m.mu.Lock()
	if err := m.record("Exec", name, command, opts); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if _, err := m.container(name); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	hook := m.ExecHook
	result, ok := m.ExecResults[name]
	m.mu.Unlock()

	if hook != nil {
		return hook(name, command)
	}
	if ok {
		return result, nil
	}
	return &ExecResult{ExitCode: 0}, nil
}

// CopyFrom returns the bytes registered in Files
func (m *MockRuntime) CopyFrom(ctx context.Context, name, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CopyFrom", name, path); err != nil {
		return nil, err
	}

	if _, err := m.container(name); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(m.Files[name+":"+path])), nil
}

// Images lists the images of a repository ordered by tag
func (m *MockRuntime) Images(ctx context.Context, repo string) ([]*ImageInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Images", repo); err != nil {
		return nil, err
	}

	var images []*ImageInfo
	for _, img := range m.ImageRefs {
		if img.Repository == repo {
			cp := *img
			images = append(images, &cp)
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Tag < images[j].Tag })
	return images, nil
}

// RemoveImage removes an image reference
func (m *MockRuntime) RemoveImage(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RemoveImage", ref); err != nil {
		return err
	}

	repo, tag := SplitRef(ref)
	if _, ok := m.ImageRefs[repo+":"+tag]; !ok {
		return fmt.Errorf("image %s: %w", ref, ErrNotFound)
	}
	delete(m.ImageRefs, repo+":"+tag)
	return nil
}

// ImportImage creates an empty-comment image
func (m *MockRuntime) ImportImage(ctx context.Context, r io.Reader, repo, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ImportImage", repo, tag); err != nil {
		return err
	}

	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	m.addImage(repo+":"+tag, "")
	return nil
}

// List returns all containers carrying the given label key
func (m *MockRuntime) List(ctx context.Context, label string) ([]*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("List", label); err != nil {
		return nil, err
	}

	var containers []*ContainerInfo
	for _, c := range m.Containers {
		if _, ok := c.Labels[label]; ok {
			cp := *c
			containers = append(containers, &cp)
		}
	}
	sort.Slice(containers, func(i, j int) bool { return containers[i].Name < containers[j].Name })
	return containers, nil
}

// Ensure MockRuntime implements Runtime
var _ Runtime = (*MockRuntime)(nil)
