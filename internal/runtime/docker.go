package runtime

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/system"
)

// DockerRuntime implements the Runtime interface by shelling out to the
// docker or podman CLI.
type DockerRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string

	// Executor runs the CLI; defaults to system.DefaultExecutor().
	Executor system.CommandExecutor
}

// NewDockerRuntime creates a CLI runtime for command. An empty command
// picks docker, then podman, from PATH.
func NewDockerRuntime(command string) (*DockerRuntime, error) {
	exec := system.DefaultExecutor()

	if command != "" {
		if _, err := exec.LookPath(command); err != nil {
			return nil, fmt.Errorf("%s not found in PATH: %w", command, err)
		}
		return &DockerRuntime{Command: command, Executor: exec}, nil
	}

	for _, candidate := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return &DockerRuntime{Command: candidate, Executor: exec}, nil
		}
	}

	return nil, fmt.Errorf("neither docker nor podman found in PATH")
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return r.Command
}

func (r *DockerRuntime) executor() system.CommandExecutor {
	if r.Executor == nil {
		return system.DefaultExecutor()
	}
	return r.Executor
}

// runCmd executes a docker/podman command
func (r *DockerRuntime) runCmd(ctx context.Context, args ...string) (string, error) {
	out, err := r.executor().Execute(ctx, r.Command, args...)
	if err != nil {
		stderr := ""
		if out != nil {
			stderr = strings.TrimSpace(string(out.Stderr))
			if stderr == "" {
				stderr = strings.TrimSpace(string(out.Stdout))
			}
		}
		return "", &cliError{command: r.Command, sub: args[0], stderr: stderr, err: err}
	}
	return string(out.Stdout), nil
}

type cliError struct {
	command string
	sub     string
	stderr  string
	err     error
}

func (e *cliError) Error() string {
	return fmt.Sprintf("%s %s failed: %s: %v", e.command, e.sub, e.stderr, e.err)
}

func (e *cliError) Unwrap() error { return e.err }

func (e *cliError) notFound() bool { return isNotFoundMessage(e.stderr) }

// runArgs builds the argument list for `docker run`.
func runArgs(opts RunOptions) []string {
	args := []string{"run", "-d"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.AutoRemove {
		args = append(args, "--rm")
	}
	if opts.ShmSize > 0 {
		args = append(args, "--shm-size", strconv.FormatInt(opts.ShmSize, 10))
	}

	for _, hostPort := range sortedPorts(opts.Ports) {
		binding := fmt.Sprintf("%d:%d", hostPort, opts.Ports[hostPort])
		if opts.HostIP != "" {
			binding = opts.HostIP + ":" + binding
		}
		args = append(args, "-p", binding)
	}

	for _, m := range opts.Mounts {
		args = append(args, "-v", m.Spec())
	}

	for _, kv := range sortedEnv(opts.Env) {
		args = append(args, "-e", kv)
	}

	for _, kv := range sortedEnv(opts.Labels) {
		args = append(args, "--label", kv)
	}

	return append(args, opts.Image)
}

// Run creates and starts a detached container.
func (r *DockerRuntime) Run(ctx context.Context, opts RunOptions) (*ContainerInfo, error) {
	logging.Debug("running container", "name", opts.Name, "image", opts.Image, "runtime", r.Command)

	output, err := r.runCmd(ctx, runArgs(opts)...)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(output)
	if lines := strings.Split(id, "\n"); len(lines) > 1 {
		// podman may print pull progress before the id
		id = strings.TrimSpace(lines[len(lines)-1])
	}

	return &ContainerInfo{
		ID:     id,
		Name:   opts.Name,
		Image:  opts.Image,
		Status: StatusRunning,
	}, nil
}

// execArgs builds the argument list for `docker exec`.
func execArgs(id string, command []string, opts ExecOptions) []string {
	args := []string{"exec"}
	if opts.Detach {
		args = append(args, "-d")
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	for _, kv := range sortedEnv(opts.Env) {
		args = append(args, "-e", kv)
	}
	args = append(args, id)
	return append(args, command...)
}

// Exec executes a command inside a container
func (r *DockerRuntime) Exec(ctx context.Context, id string, command []string, opts ExecOptions) (*ExecResult, error) {
	out, err := r.executor().Execute(ctx, r.Command, execArgs(id, command, opts)...)

	result := &ExecResult{}
	if out != nil {
		result.ExitCode = out.ExitCode
		result.Stdout = string(out.Stdout)
		result.Stderr = string(out.Stderr)
	}

	if err != nil {
		if isNotFoundMessage(result.Stderr) {
			return result, notFound("container", id)
		}
		if result.ExitCode == 0 {
			return result, fmt.Errorf("exec failed: %w", err)
		}
	}

	return result, nil
}

// List returns containers whose name contains nameFilter
func (r *DockerRuntime) List(ctx context.Context, nameFilter string) ([]*ContainerInfo, error) {
	args := []string{"ps", "-a", "--no-trunc", "--format", "{{.ID}}\t{{.Names}}\t{{.Image}}\t{{.State}}\t{{.Status}}"}
	if nameFilter != "" {
		args = append(args, "--filter", "name="+nameFilter)
	}

	output, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}

	var containers []*ContainerInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			logging.Debug("skipping unparseable ps line", "line", line)
			continue
		}
		info := &ContainerInfo{
			ID:     fields[0],
			Name:   fields[1],
			Image:  fields[2],
			Status: ParseStatus(fields[3]),
		}
		if len(fields) > 4 {
			info.State = fields[4]
		}
		containers = append(containers, info)
	}

	return containers, nil
}

// Remove removes a container
func (r *DockerRuntime) Remove(ctx context.Context, id string, force bool) error {
	logging.Debug("removing container", "container", id, "force", force)

	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, id)

	if _, err := r.runCmd(ctx, args...); err != nil {
		if ce, ok := err.(*cliError); ok && ce.notFound() {
			return notFound("container", id)
		}
		return err
	}
	return nil
}

// ImageExists reports whether ref is present locally.
func (r *DockerRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	if _, err := r.runCmd(ctx, "image", "inspect", ref); err != nil {
		if ce, ok := err.(*cliError); ok && ce.notFound() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveImage removes a local image.
func (r *DockerRuntime) RemoveImage(ctx context.Context, ref string, force bool) error {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, ref)

	if _, err := r.runCmd(ctx, args...); err != nil {
		if ce, ok := err.(*cliError); ok && ce.notFound() {
			return notFound("image", ref)
		}
		return err
	}
	return nil
}

// Build builds an image from an inline Dockerfile read from stdin.
func (r *DockerRuntime) Build(ctx context.Context, opts BuildOptions, w io.Writer) error {
	if w == nil {
		w = io.Discard
	}
	args := []string{"build", "-t", opts.Tag}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	args = append(args, "-")

	if err := r.executor().ExecuteStreaming(ctx, w, opts.Dockerfile, r.Command, args...); err != nil {
		return fmt.Errorf("%s build %s failed: %w", r.Command, opts.Tag, err)
	}
	return nil
}

// Ensure DockerRuntime implements Runtime
var _ Runtime = (*DockerRuntime)(nil)
