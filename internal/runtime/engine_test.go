package runtime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boxerrors "github.com/firefly-engineering/browserbox/internal/errors"
)

type fakeEngine struct {
	createErr error
	startErr  error
	removeErr error

	created    *container.Config
	hostConfig *container.HostConfig
	removed    []string

	containers []types.Container
	execOutput string
	execExit   int
	images     map[string]bool
}

func (f *fakeEngine) Ping(ctx context.Context) (types.Ping, error) { return types.Ping{}, nil }

func (f *fakeEngine) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.created = config
	f.hostConfig = hostConfig
	return container.CreateResponse{ID: "cid-" + containerName}, nil
}

func (f *fakeEngine) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return f.startErr
}

func (f *fakeEngine) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return f.removeErr
}

func (f *fakeEngine) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	return f.containers, nil
}

func (f *fakeEngine) ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error) {
	return types.IDResponse{ID: "exec1"}, nil
}

func (f *fakeEngine) ContainerExecStart(ctx context.Context, execID string, options container.ExecStartOptions) error {
	return nil
}

func (f *fakeEngine) ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error) {
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.execOutput))
	client, server := net.Pipe()
	_ = server.Close()
	return types.HijackedResponse{Conn: client, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeEngine) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	return container.ExecInspect{ExecID: execID, ExitCode: f.execExit}, nil
}

func (f *fakeEngine) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	if f.images[imageID] {
		return types.ImageInspect{ID: imageID}, nil, nil
	}
	return types.ImageInspect{}, nil, errdefs.NotFound(errors.New("no such image"))
}

func (f *fakeEngine) ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error) {
	if !f.images[imageID] {
		return nil, errdefs.NotFound(errors.New("no such image"))
	}
	delete(f.images, imageID)
	return nil, nil
}

func (f *fakeEngine) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	body := `{"stream":"Step 1/3 : FROM selenium/standalone-chrome:4.1\n"}` + "\n"
	return types.ImageBuildResponse{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func (f *fakeEngine) Close() error { return nil }

func TestContainerConfigs(t *testing.T) {
	cfg, host := containerConfigs(RunOptions{
		Image:      "selenium-firefox:latest",
		HostIP:     "127.0.0.1",
		Ports:      map[int]int{4446: 4444, 7902: 7900},
		Mounts:     []Mount{{HostPath: "/v", ContainerPath: "/tmp/screencast"}},
		Env:        map[string]string{"VNC_NO_PASSWORD": "1"},
		ShmSize:    1 << 31,
		AutoRemove: true,
	})

	assert.Equal(t, "selenium-firefox:latest", cfg.Image)
	assert.Equal(t, []string{"VNC_NO_PASSWORD=1"}, cfg.Env)
	assert.Contains(t, cfg.ExposedPorts, nat.Port("4444/tcp"))

	require.Len(t, host.PortBindings[nat.Port("4444/tcp")], 1)
	assert.Equal(t, "4446", host.PortBindings[nat.Port("4444/tcp")][0].HostPort)
	assert.Equal(t, "127.0.0.1", host.PortBindings[nat.Port("4444/tcp")][0].HostIP)
	assert.Equal(t, "7902", host.PortBindings[nat.Port("7900/tcp")][0].HostPort)
	assert.Equal(t, []string{"/v:/tmp/screencast:rw"}, host.Binds)
	assert.Equal(t, int64(1<<31), host.ShmSize)
	assert.True(t, host.AutoRemove)
}

func TestEngineRuntime_Run(t *testing.T) {
	fake := &fakeEngine{}
	rt := &EngineRuntime{api: fake}

	info, err := rt.Run(context.Background(), RunOptions{Name: "box", Image: "img"})
	require.NoError(t, err)
	assert.Equal(t, "cid-box", info.ID)
	assert.Equal(t, StatusRunning, info.Status)
}

func TestEngineRuntime_RunMissingImage(t *testing.T) {
	fake := &fakeEngine{createErr: errdefs.NotFound(errors.New("No such image: img"))}
	rt := &EngineRuntime{api: fake}

	_, err := rt.Run(context.Background(), RunOptions{Name: "box", Image: "img"})
	require.Error(t, err)
	assert.True(t, boxerrors.Is(err, boxerrors.ErrNotFound))
}

func TestEngineRuntime_RunStartFailureRemovesContainer(t *testing.T) {
	fake := &fakeEngine{startErr: errors.New("port is already allocated")}
	rt := &EngineRuntime{api: fake}

	_, err := rt.Run(context.Background(), RunOptions{Name: "box", Image: "img"})
	require.Error(t, err)
	assert.Equal(t, []string{"cid-box"}, fake.removed)
}

func TestEngineRuntime_RemoveNotFound(t *testing.T) {
	fake := &fakeEngine{removeErr: errdefs.NotFound(errors.New("No such container"))}
	rt := &EngineRuntime{api: fake}

	err := rt.Remove(context.Background(), "gone", true)
	assert.True(t, boxerrors.Is(err, boxerrors.ErrNotFound))
}

func TestEngineRuntime_List(t *testing.T) {
	fake := &fakeEngine{containers: []types.Container{
		{ID: "a", Names: []string{"/browserbox-chrome-0"}, Image: "selenium-chrome:latest", State: "running", Status: "Up 3 seconds"},
		{ID: "b", Names: nil, Image: "x", State: "exited"},
	}}
	rt := &EngineRuntime{api: fake}

	list, err := rt.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "browserbox-chrome-0", list[0].Name)
	assert.Equal(t, StatusRunning, list[0].Status)
	assert.Equal(t, StatusStopped, list[1].Status)
}

func TestEngineRuntime_Exec(t *testing.T) {
	fake := &fakeEngine{execOutput: "hello\n", execExit: 3}
	rt := &EngineRuntime{api: fake}

	res, err := rt.Exec(context.Background(), "c", []string{"echo", "hello"}, ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 3, res.ExitCode)

	res, err = rt.Exec(context.Background(), "c", []string{"ffmpeg"}, ExecOptions{Detach: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestEngineRuntime_Images(t *testing.T) {
	fake := &fakeEngine{images: map[string]bool{"selenium-chrome:latest": true}}
	rt := &EngineRuntime{api: fake}
	ctx := context.Background()

	exists, err := rt.ImageExists(ctx, "selenium-chrome:latest")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, rt.RemoveImage(ctx, "selenium-chrome:latest", true))

	exists, err = rt.ImageExists(ctx, "selenium-chrome:latest")
	require.NoError(t, err)
	assert.False(t, exists)

	err = rt.RemoveImage(ctx, "selenium-chrome:latest", true)
	assert.True(t, boxerrors.Is(err, boxerrors.ErrNotFound))
}

func TestEngineRuntime_Build(t *testing.T) {
	rt := &EngineRuntime{api: &fakeEngine{}}

	var out bytes.Buffer
	err := rt.Build(context.Background(), BuildOptions{Tag: "t", Dockerfile: "FROM scratch\n"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Step 1/3")
}

func TestDockerfileContext(t *testing.T) {
	r, err := dockerfileContext("FROM scratch\n")
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Dockerfile")
	assert.Contains(t, string(data), "FROM scratch")
}
