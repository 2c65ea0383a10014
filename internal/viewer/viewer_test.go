package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/browserbox/internal/system"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		viewOnly bool
		want     string
	}{
		{"view only", "127.0.0.1", 7900, true, "http://127.0.0.1:7900/?autoconnect=true&view_only=true"},
		{"interactive", "localhost", 7903, false, "http://localhost:7903/?autoconnect=true&view_only=false"},
		{"ipv6", "::1", 7900, true, "http://[::1]:7900/?autoconnect=true&view_only=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.host, tt.port, tt.viewOnly))
		})
	}
}

func TestOpenURL(t *testing.T) {
	var opened string
	open := func(u string) error {
		opened = u
		return nil
	}

	got, err := OpenURL(open, "127.0.0.1", 7901, true)
	require.NoError(t, err)
	assert.Equal(t, got, opened)
	assert.Contains(t, opened, ":7901/")
}

func TestOpenURL_Error(t *testing.T) {
	open := func(string) error { return errors.New("no browser") }

	target, err := OpenURL(open, "127.0.0.1", 7900, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no browser")
	assert.NotEmpty(t, target)
}

func TestCommand(t *testing.T) {
	name, args, err := Command("linux", "127.0.0.1", 5901)
	require.NoError(t, err)
	assert.Equal(t, "vncviewer", name)
	assert.Equal(t, []string{"127.0.0.1:5901", "WarnUnencrypted=0", "ViewOnly=1"}, args)

	name, args, err = Command("darwin", "127.0.0.1", 5900)
	require.NoError(t, err)
	assert.Equal(t, "open", name)
	assert.Equal(t, []string{"-a", "/Applications/VNC Viewer.app", "-n", "--args",
		"127.0.0.1:5900", "WarnUnencrypted=0", "ViewOnly=1"}, args)

	_, _, err = Command("plan9", "127.0.0.1", 5900)
	assert.Error(t, err)
}

func TestConnect_ReleaseKillsViewer(t *testing.T) {
	mock := system.NewMockExecutor()

	release, err := connect(context.Background(), mock, "linux", "127.0.0.1", 0)
	require.NoError(t, err)
	require.Len(t, mock.Processes, 1)

	proc := mock.Processes[0]
	assert.Equal(t, "vncviewer 127.0.0.1:5900 WarnUnencrypted=0 ViewOnly=1", proc.Command.String())
	assert.False(t, proc.Killed())

	release()
	release()
	assert.True(t, proc.Killed())
}

func TestConnect_MissingViewer(t *testing.T) {
	mock := system.NewMockExecutor()
	mock.MissingPaths["vncviewer"] = true

	_, err := connect(context.Background(), mock, "linux", "127.0.0.1", 5900)
	require.Error(t, err)
	assert.Empty(t, mock.Processes)
}

func TestConnect_StartError(t *testing.T) {
	mock := system.NewMockExecutor()
	mock.StartErr = errors.New("boom")

	_, err := connect(context.Background(), mock, "linux", "127.0.0.1", 5900)
	assert.ErrorContains(t, err, "boom")
}
