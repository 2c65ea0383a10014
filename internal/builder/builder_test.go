package builder

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

func newBuilder() (*Builder, *runtime.MockRuntime, *bytes.Buffer) {
	rt := runtime.NewMockRuntime()
	out := &bytes.Buffer{}
	return &Builder{Runtime: rt, ImagePrefix: "selenium", Out: out}, rt, out
}

func TestDockerfile(t *testing.T) {
	df := Dockerfile("selenium/standalone-chrome:4.1")
	assert.Contains(t, df, "FROM selenium/standalone-chrome:4.1\n")
	assert.Contains(t, df, "apt-get install -y ffmpeg")
	assert.Contains(t, df, "RUN mkdir -p /tmp/screencast")
}

func TestBaseImage(t *testing.T) {
	tests := []struct {
		browser browser.Type
		version string
		want    string
	}{
		{browser.Chrome, "latest", "selenium/standalone-chrome:4.1"},
		{browser.Firefox, "", "selenium/standalone-firefox:4.1"},
		{browser.Edge, "4.16.1", "selenium/standalone-edge:4.16.1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.browser)+":"+tt.version, func(t *testing.T) {
			d, ok := browser.Lookup(tt.browser)
			require.True(t, ok)
			assert.Equal(t, tt.want, BaseImage(d, tt.version))
		})
	}
}

func TestBuild(t *testing.T) {
	b, rt, out := newBuilder()

	res, err := b.Build(context.Background(), browser.Chrome, Options{})
	require.NoError(t, err)
	assert.Equal(t, Built, res)

	builds := rt.GetCallsFor("Build")
	require.Len(t, builds, 1)
	opts := builds[0].Args[0].(runtime.BuildOptions)
	assert.Equal(t, "selenium-chrome:latest", opts.Tag)
	assert.Contains(t, opts.Dockerfile, "FROM selenium/standalone-chrome:4.1")
	assert.Contains(t, out.String(), "selenium-chrome:latest")

	removes := rt.GetCallsFor("RemoveImage")
	require.Len(t, removes, 1)
	assert.Equal(t, "selenium/standalone-chrome:4.1", removes[0].Args[0])
	assert.Equal(t, true, removes[0].Args[1])
}

func TestBuild_SkipsExisting(t *testing.T) {
	b, rt, _ := newBuilder()
	rt.AddImage("selenium-firefox:latest")

	res, err := b.Build(context.Background(), browser.Firefox, Options{})
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)
	assert.Empty(t, rt.GetCallsFor("Build"))

	res, err = b.Build(context.Background(), browser.Firefox, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, Built, res)
	assert.Len(t, rt.GetCallsFor("Build"), 1)
}

func TestBuild_KeepBase(t *testing.T) {
	b, rt, _ := newBuilder()
	b.KeepBase = true

	_, err := b.Build(context.Background(), browser.Edge, Options{})
	require.NoError(t, err)
	assert.Empty(t, rt.GetCallsFor("RemoveImage"))
}

func TestBuild_Failure(t *testing.T) {
	b, rt, _ := newBuilder()
	rt.SetError("Build", stderrors.New("apt-get failed"))

	_, err := b.Build(context.Background(), browser.Chrome, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindContainer))
	assert.Empty(t, rt.GetCallsFor("RemoveImage"))
}

func TestBuild_Unsupported(t *testing.T) {
	b, rt, _ := newBuilder()

	_, err := b.Build(context.Background(), browser.Type("safari"), Options{})
	require.Error(t, err)
	assert.Empty(t, rt.GetCalls())
}

func TestBuildAll(t *testing.T) {
	b, rt, _ := newBuilder()
	rt.AddImage("selenium-edge:latest")

	results, err := b.BuildAll(context.Background(), browser.Supported(), Options{})
	require.NoError(t, err)
	assert.Equal(t, map[browser.Type]Result{
		browser.Chrome:  Built,
		browser.Edge:    Skipped,
		browser.Firefox: Built,
	}, results)
}
