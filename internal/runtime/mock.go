package runtime

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MockRuntime is a mock implementation of Runtime for testing
type MockRuntime struct {
	mu sync.RWMutex

	// Containers tracks the state of mock containers by id
	Containers map[string]*ContainerInfo

	// Images tracks locally present images
	Images map[string]bool

	// ExecResults maps container ids to predefined exec results
	ExecResults map[string]*ExecResult

	// ExecHook, when set, computes exec results instead of ExecResults.
	ExecHook func(id string, command []string, opts ExecOptions) (*ExecResult, error)

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall

	ports  map[string]map[int]int
	nextID int
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Containers:  make(map[string]*ContainerInfo),
		Images:      make(map[string]bool),
		ExecResults: make(map[string]*ExecResult),
		Errors:      make(map[string]error),
		CallLog:     make([]MockCall, 0),
		ports:       make(map[string]map[int]int),
	}
}

func (m *MockRuntime) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// ClearError removes an injected error
func (m *MockRuntime) ClearError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Errors, operation)
}

// SetExecResult sets the result for exec operations on a container
func (m *MockRuntime) SetExecResult(id string, result *ExecResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecResults[id] = result
}

// AddImage marks an image as present locally
func (m *MockRuntime) AddImage(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Images[ref] = true
}

// AddContainer adds a container to the mock and returns its id
func (m *MockRuntime) AddContainer(name, image string, status ContainerStatus) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("mock%06d", m.nextID)
	m.Containers[id] = &ContainerInfo{
		ID:     id,
		Name:   name,
		Image:  image,
		Status: status,
	}
	return id
}

// HasContainer reports whether a container with the given id or name exists
func (m *MockRuntime) HasContainer(idOrName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(idOrName) != nil
}

// ContainerCount returns the number of containers
func (m *MockRuntime) ContainerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Containers)
}

func (m *MockRuntime) find(idOrName string) *ContainerInfo {
	if c, ok := m.Containers[idOrName]; ok {
		return c
	}
	for _, c := range m.Containers {
		if c.Name == idOrName {
			return c
		}
	}
	return nil
}

// boundPorts maps host ports published by live containers to the container name.
func (m *MockRuntime) boundPorts() map[int]string {
	bound := make(map[int]string)
	for id, ports := range m.ports {
		if c, ok := m.Containers[id]; ok && c.Status == StatusRunning {
			for hostPort := range ports {
				bound[hostPort] = c.Name
			}
		}
	}
	return bound
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers = make(map[string]*ContainerInfo)
	m.Images = make(map[string]bool)
	m.ExecResults = make(map[string]*ExecResult)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
	m.ports = make(map[string]map[int]int)
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// Run creates a running container if the image is present
func (m *MockRuntime) Run(ctx context.Context, opts RunOptions) (*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Run", opts)

	if err, ok := m.Errors["Run"]; ok {
		return nil, err
	}
	if !m.Images[opts.Image] {
		return nil, notFound("image", opts.Image)
	}
	if opts.Name != "" && m.find(opts.Name) != nil {
		return nil, fmt.Errorf("container name %q is already in use", opts.Name)
	}
	bound := m.boundPorts()
	for hostPort := range opts.Ports {
		if owner, ok := bound[hostPort]; ok {
			return nil, fmt.Errorf("port %d is already allocated by %s", hostPort, owner)
		}
	}

	m.nextID++
	info := &ContainerInfo{
		ID:     fmt.Sprintf("mock%06d", m.nextID),
		Name:   opts.Name,
		Image:  opts.Image,
		Status: StatusRunning,
	}
	m.Containers[info.ID] = info
	m.ports[info.ID] = opts.Ports

	out := *info
	return &out, nil
}

// Exec executes a command inside a container
func (m *MockRuntime) Exec(ctx context.Context, id string, command []string, opts ExecOptions) (*ExecResult, error) {
	m.mu.Lock()
	m.record("Exec", id, command, opts)
	err, injected := m.Errors["Exec"]
	found := m.find(id) != nil
	hook := m.ExecHook
	result, hasResult := m.ExecResults[id]
	m.mu.Unlock()

	if injected {
		return nil, err
	}
	if !found {
		return nil, notFound("container", id)
	}
	if hook != nil {
		return hook(id, command, opts)
	}
	if hasResult {
		return result, nil
	}

	return &ExecResult{ExitCode: 0, Stdout: "", Stderr: ""}, nil
}

// List returns containers whose name contains nameFilter, sorted by name
func (m *MockRuntime) List(ctx context.Context, nameFilter string) ([]*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("List", nameFilter)

	if err, ok := m.Errors["List"]; ok {
		return nil, err
	}

	var containers []*ContainerInfo
	for _, c := range m.Containers {
		if nameFilter == "" || strings.Contains(c.Name, nameFilter) {
			out := *c
			containers = append(containers, &out)
		}
	}
	sort.Slice(containers, func(i, j int) bool { return containers[i].Name < containers[j].Name })

	return containers, nil
}

// Remove removes a container
func (m *MockRuntime) Remove(ctx context.Context, id string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Remove", id, force)

	if err, ok := m.Errors["Remove"]; ok {
		return err
	}

	c := m.find(id)
	if c == nil {
		return notFound("container", id)
	}
	if c.Status == StatusRunning && !force {
		return fmt.Errorf("cannot remove running container %s without force", id)
	}
	delete(m.Containers, c.ID)
	delete(m.ports, c.ID)
	return nil
}

// ImageExists reports whether ref was added with AddImage or built
func (m *MockRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ImageExists", ref)

	if err, ok := m.Errors["ImageExists"]; ok {
		return false, err
	}
	return m.Images[ref], nil
}

// RemoveImage removes a local image
func (m *MockRuntime) RemoveImage(ctx context.Context, ref string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveImage", ref, force)

	if err, ok := m.Errors["RemoveImage"]; ok {
		return err
	}
	if !m.Images[ref] {
		return notFound("image", ref)
	}
	delete(m.Images, ref)
	return nil
}

// Build marks the tag as present and writes a short progress line
func (m *MockRuntime) Build(ctx context.Context, opts BuildOptions, w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Build", opts)

	if err, ok := m.Errors["Build"]; ok {
		return err
	}
	if w != nil {
		fmt.Fprintf(w, "Successfully tagged %s\n", opts.Tag)
	}
	m.Images[opts.Tag] = true
	return nil
}

// Ensure MockRuntime implements Runtime
var _ Runtime = (*MockRuntime)(nil)
