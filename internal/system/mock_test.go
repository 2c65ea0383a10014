package system

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func TestMockExecutor_Execute(t *testing.T) {
	exec := NewMockExecutor()
	exec.AddResponse("echo", []byte("hello\n"), nil)

	output, err := exec.Execute(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if string(output.Stdout) != "hello\n" {
		t.Errorf("Output = %q, want %q", string(output.Stdout), "hello\n")
	}

	cmd, ok := exec.LastCommand()
	if !ok {
		t.Fatal("No command recorded")
	}
	if cmd.Name != "echo" {
		t.Errorf("Command name = %q, want %q", cmd.Name, "echo")
	}
	if cmd.String() != "echo hello" {
		t.Errorf("Command string = %q, want %q", cmd.String(), "echo hello")
	}
}

func TestMockExecutor_SubcommandPatternWins(t *testing.T) {
	exec := NewMockExecutor()
	exec.AddResponse("docker", []byte("generic"), nil)
	exec.AddResponse("docker rm", nil, errors.New("No such container: x"))

	out, err := exec.Execute(context.Background(), "docker", "rm", "-f", "x")
	if err == nil {
		t.Fatal("expected error for docker rm")
	}
	if out.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", out.ExitCode)
	}

	out, err = exec.Execute(context.Background(), "docker", "ps")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if string(out.Stdout) != "generic" {
		t.Errorf("Output = %q, want %q", out.Stdout, "generic")
	}

	if got := len(exec.CommandsFor("rm")); got != 1 {
		t.Errorf("CommandsFor(rm) = %d, want 1", got)
	}
}

func TestMockExecutor_DefaultResponse(t *testing.T) {
	exec := NewMockExecutor()
	exec.DefaultResponse = MockResponse{Output: []byte("default"), Err: nil}

	output, err := exec.Execute(context.Background(), "unknown", "command")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if string(output.Stdout) != "default" {
		t.Errorf("Output = %q, want %q", string(output.Stdout), "default")
	}
}

func TestMockExecutor_Streaming(t *testing.T) {
	exec := NewMockExecutor()
	exec.AddResponse("docker build", []byte("Step 1/3\n"), nil)

	var buf bytes.Buffer
	if err := exec.ExecuteStreaming(context.Background(), &buf, "FROM scratch", "docker", "build", "-"); err != nil {
		t.Fatalf("ExecuteStreaming error: %v", err)
	}
	if buf.String() != "Step 1/3\n" {
		t.Errorf("streamed = %q", buf.String())
	}
	cmd, _ := exec.LastCommand()
	if cmd.Stdin != "FROM scratch" {
		t.Errorf("Stdin = %q, want %q", cmd.Stdin, "FROM scratch")
	}
}

func TestMockExecutor_StartAndKill(t *testing.T) {
	exec := NewMockExecutor()

	p, err := exec.Start(context.Background(), StartOptions{Env: []string{"A=1"}}, "vncviewer", "localhost:5900")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if len(exec.Processes) != 1 {
		t.Fatalf("Processes = %d, want 1", len(exec.Processes))
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("Kill error: %v", err)
	}
	if err := p.Wait(); err == nil {
		t.Error("Wait after Kill should report the kill")
	}
	if !exec.Processes[0].Killed() {
		t.Error("process should be marked killed")
	}
	if exec.Processes[0].Command.Env[0] != "A=1" {
		t.Errorf("Env = %v", exec.Processes[0].Command.Env)
	}
}

func TestMockProcess_InterruptExits(t *testing.T) {
	exec := NewMockExecutor()
	p, _ := exec.Start(context.Background(), StartOptions{}, "sleep", "100")

	_ = p.Signal(os.Interrupt)
	if err := p.Wait(); err != nil {
		t.Errorf("Wait after interrupt = %v, want nil", err)
	}
	if sigs := exec.Processes[0].Signals(); len(sigs) != 1 || sigs[0] != os.Interrupt {
		t.Errorf("Signals = %v", sigs)
	}
}

func TestMockExecutor_LookPath(t *testing.T) {
	exec := NewMockExecutor()
	exec.MissingPaths["podman"] = true

	if _, err := exec.LookPath("docker"); err != nil {
		t.Errorf("LookPath(docker) = %v", err)
	}
	if _, err := exec.LookPath("podman"); err == nil {
		t.Error("LookPath(podman) should fail")
	}
}

func TestMockExecutor_Reset(t *testing.T) {
	exec := NewMockExecutor()
	exec.Execute(context.Background(), "cmd1")
	exec.Execute(context.Background(), "cmd2")

	if len(exec.Commands) != 2 {
		t.Errorf("Commands length = %d, want 2", len(exec.Commands))
	}

	exec.Reset()

	if len(exec.Commands) != 0 {
		t.Errorf("Commands length after reset = %d, want 0", len(exec.Commands))
	}
}

func TestMockExecutor_AutoExit(t *testing.T) {
	m := NewMockExecutor()
	m.AutoExit = true
	m.SetResponse("pytest", MockResponse{Err: errors.New("exit status 1"), ExitCode: 1})

	p, err := m.Start(context.Background(), StartOptions{}, "pytest", "t.py")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Wait(); err == nil {
		t.Error("Wait should return the response error")
	}

	p, err = m.Start(context.Background(), StartOptions{}, "true")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}
