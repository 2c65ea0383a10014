package runtime

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/firefly-engineering/browserbox/internal/logging"
)

// engineAPI is the subset of the Docker Engine client used by EngineRuntime.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecStart(ctx context.Context, execID string, options container.ExecStartOptions) error
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	Close() error
}

// EngineRuntime implements Runtime against the Docker Engine API.
type EngineRuntime struct {
	api engineAPI
}

// NewEngineRuntime connects to the daemon described by the DOCKER_* environment.
func NewEngineRuntime() (*EngineRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &EngineRuntime{api: cli}, nil
}

// Ping checks that the daemon answers within timeout.
func (r *EngineRuntime) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := r.api.Ping(ctx)
	return err
}

// Close releases the client connection.
func (r *EngineRuntime) Close() error {
	return r.api.Close()
}

// Name returns the runtime identifier
func (r *EngineRuntime) Name() string {
	return "api"
}

// containerConfigs translates RunOptions to Engine API create parameters.
func containerConfigs(opts RunOptions) (*container.Config, *container.HostConfig) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, hostPort := range sortedPorts(opts.Ports) {
		p := nat.Port(fmt.Sprintf("%d/tcp", opts.Ports[hostPort]))
		exposed[p] = struct{}{}
		bindings[p] = append(bindings[p], nat.PortBinding{
			HostIP:   opts.HostIP,
			HostPort: strconv.Itoa(hostPort),
		})
	}

	binds := make([]string, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		binds = append(binds, m.Spec())
	}

	cfg := &container.Config{
		Image:        opts.Image,
		Env:          sortedEnv(opts.Env),
		Labels:       opts.Labels,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Binds:        binds,
		ShmSize:      opts.ShmSize,
		AutoRemove:   opts.AutoRemove,
	}
	return cfg, hostCfg
}

// Run creates and starts a detached container.
func (r *EngineRuntime) Run(ctx context.Context, opts RunOptions) (*ContainerInfo, error) {
	logging.Debug("running container", "name", opts.Name, "image", opts.Image, "runtime", "api")

	cfg, hostCfg := containerConfigs(opts)
	resp, err := r.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("create %s: %w", opts.Name, notFound("image", opts.Image))
		}
		return nil, fmt.Errorf("create %s: %w", opts.Name, err)
	}

	for _, w := range resp.Warnings {
		logging.Warn("container create warning", "name", opts.Name, "warning", w)
	}

	if err := r.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// A created but unstarted container would leak; AutoRemove only fires after a start.
		_ = r.api.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start %s: %w", opts.Name, err)
	}

	return &ContainerInfo{
		ID:     resp.ID,
		Name:   opts.Name,
		Image:  opts.Image,
		Status: StatusRunning,
	}, nil
}

// Exec executes a command inside a container
func (r *EngineRuntime) Exec(ctx context.Context, id string, command []string, opts ExecOptions) (*ExecResult, error) {
	execOpts := container.ExecOptions{
		User:         opts.User,
		Env:          sortedEnv(opts.Env),
		Cmd:          command,
		Detach:       opts.Detach,
		AttachStdout: !opts.Detach,
		AttachStderr: !opts.Detach,
	}

	created, err := r.api.ContainerExecCreate(ctx, id, execOpts)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, notFound("container", id)
		}
		return nil, fmt.Errorf("exec create: %w", err)
	}

	if opts.Detach {
		if err := r.api.ContainerExecStart(ctx, created.ID, container.ExecStartOptions{Detach: true}); err != nil {
			return nil, fmt.Errorf("exec start: %w", err)
		}
		return &ExecResult{}, nil
	}

	attach, err := r.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return nil, fmt.Errorf("exec read output: %w", err)
	}

	inspect, err := r.api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect: %w", err)
	}

	return &ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// List returns containers whose name contains nameFilter
func (r *EngineRuntime) List(ctx context.Context, nameFilter string) ([]*ContainerInfo, error) {
	opts := container.ListOptions{All: true}
	if nameFilter != "" {
		opts.Filters = filters.NewArgs(filters.Arg("name", nameFilter))
	}

	list, err := r.api.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	containers := make([]*ContainerInfo, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		containers = append(containers, &ContainerInfo{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			Status: ParseStatus(c.State),
			State:  c.Status,
		})
	}
	return containers, nil
}

// Remove removes a container
func (r *EngineRuntime) Remove(ctx context.Context, id string, force bool) error {
	logging.Debug("removing container", "container", id, "force", force, "runtime", "api")

	err := r.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: force})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return notFound("container", id)
		}
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

// ImageExists reports whether ref is present locally.
func (r *EngineRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	if _, _, err := r.api.ImageInspectWithRaw(ctx, ref); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect image %s: %w", ref, err)
	}
	return true, nil
}

// RemoveImage removes a local image.
func (r *EngineRuntime) RemoveImage(ctx context.Context, ref string, force bool) error {
	if _, err := r.api.ImageRemove(ctx, ref, image.RemoveOptions{Force: force, PruneChildren: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return notFound("image", ref)
		}
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

// Build builds an image from an inline Dockerfile, streaming progress to w.
func (r *EngineRuntime) Build(ctx context.Context, opts BuildOptions, w io.Writer) error {
	if w == nil {
		w = io.Discard
	}

	buildCtx, err := dockerfileContext(opts.Dockerfile)
	if err != nil {
		return err
	}

	resp, err := r.api.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  "Dockerfile",
		NoCache:     opts.NoCache,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("build %s: %w", opts.Tag, err)
	}
	defer resp.Body.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, w, 0, false, nil); err != nil {
		return fmt.Errorf("build %s: %w", opts.Tag, err)
	}
	return nil
}

// dockerfileContext packs a single Dockerfile into a tar build context.
func dockerfileContext(dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	hdr := &tar.Header{
		Name:    "Dockerfile",
		Mode:    0644,
		Size:    int64(len(dockerfile)),
		ModTime: time.Unix(0, 0),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	if _, err := tw.Write([]byte(dockerfile)); err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	return &buf, nil
}

// Ensure EngineRuntime implements Runtime
var _ Runtime = (*EngineRuntime)(nil)
