package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// MockCommand records a command executed through MockExecutor.
type MockCommand struct {
	Name  string
	Args  []string
	Stdin string
	Env   []string
}

// String renders the command line for assertions.
func (c MockCommand) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// MockResponse is a canned result for a command pattern.
type MockResponse struct {
	Output   []byte
	Stderr   []byte
	ExitCode int
	Err      error
}

// MockExecutor implements CommandExecutor for testing.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records all executed commands in order.
	Commands []MockCommand

	// Responses maps "name" or "name arg0" to a canned response.
	Responses map[string]MockResponse

	// DefaultResponse is returned when no pattern matches.
	DefaultResponse MockResponse

	// Processes records all processes started through Start.
	Processes []*MockProcess

	// StartErr is returned by Start when set.
	StartErr error

	// MissingPaths lists executables LookPath reports as absent.
	MissingPaths map[string]bool

	// AutoExit makes started processes exit immediately with the
	// matching response's Err.
	AutoExit bool
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Commands:     make([]MockCommand, 0),
		Responses:    make(map[string]MockResponse),
		MissingPaths: make(map[string]bool),
	}
}

// AddResponse adds a response for a specific command pattern.
func (m *MockExecutor) AddResponse(pattern string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exitCode := 0
	if err != nil {
		exitCode = 1
	}
	m.Responses[pattern] = MockResponse{Output: output, ExitCode: exitCode, Err: err}
}

// SetResponse installs a full response for a command pattern.
func (m *MockExecutor) SetResponse(pattern string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = resp
}

func (m *MockExecutor) lookup(name string, args []string) MockResponse {
	if len(args) > 0 {
		if resp, ok := m.Responses[name+" "+args[0]]; ok {
			return resp
		}
	}
	if resp, ok := m.Responses[name]; ok {
		return resp
	}
	return m.DefaultResponse
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) (*Output, error) {
	return m.ExecuteWithStdin(ctx, "", name, args...)
}

func (m *MockExecutor) ExecuteWithStdin(ctx context.Context, stdin string, name string, args ...string) (*Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, MockCommand{Name: name, Args: args, Stdin: stdin})

	resp := m.lookup(name, args)
	return &Output{Stdout: resp.Output, Stderr: resp.Stderr, ExitCode: resp.ExitCode}, resp.Err
}

func (m *MockExecutor) ExecuteStreaming(ctx context.Context, w io.Writer, stdin string, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, MockCommand{Name: name, Args: args, Stdin: stdin})

	resp := m.lookup(name, args)
	if w != nil {
		_, _ = w.Write(resp.Output)
	}
	return resp.Err
}

func (m *MockExecutor) Start(ctx context.Context, opts StartOptions, name string, args ...string) (Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, MockCommand{Name: name, Args: args, Env: opts.Env})
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	resp := m.lookup(name, args)
	if opts.Stdout != nil {
		_, _ = opts.Stdout.Write(resp.Output)
	}

	p := &MockProcess{pid: 1000 + len(m.Processes), WaitErr: resp.Err, done: make(chan struct{})}
	p.Command = m.Commands[len(m.Commands)-1]
	m.Processes = append(m.Processes, p)
	if m.AutoExit {
		p.Exit()
	}
	return p, nil
}

func (m *MockExecutor) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MissingPaths[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return MockCommand{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

// CommandsFor returns all recorded commands whose first argument is sub.
func (m *MockExecutor) CommandsFor(sub string) []MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCommand
	for _, c := range m.Commands {
		if len(c.Args) > 0 && c.Args[0] == sub {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded commands and processes.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = make([]MockCommand, 0)
	m.Processes = nil
}

// MockProcess is a Process that exits when killed, signalled with
// os.Interrupt, or when Exit is called.
type MockProcess struct {
	Command MockCommand
	WaitErr error

	mu      sync.Mutex
	pid     int
	signals []os.Signal
	killed  bool
	done    chan struct{}
	closed  bool
}

// Exit makes Wait return.
func (p *MockProcess) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

func (p *MockProcess) Pid() int { return p.pid }

func (p *MockProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if sig == os.Interrupt {
		p.Exit()
	}
	return nil
}

func (p *MockProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit()
	return nil
}

func (p *MockProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return errors.New("signal: killed")
	}
	return p.WaitErr
}

// Killed reports whether Kill was called.
func (p *MockProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Signals returns the signals delivered to the process.
func (p *MockProcess) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}
