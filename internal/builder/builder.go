package builder

import (
	"context"
	"fmt"
	"io"

	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

// Result reports what Build did.
type Result string

const (
	Built   Result = "built"
	Skipped Result = "skipped"
)

const dockerfileTemplate = `FROM %s
RUN sudo apt-get update \
 && sudo apt-get install -y ffmpeg \
 && sudo rm -rf /var/lib/apt/lists/*
RUN mkdir -p %s
`

// Builder builds sandbox images on a runtime.
type Builder struct {
	Runtime     runtime.Runtime
	ImagePrefix string

	// Out receives build progress. Nil discards it.
	Out io.Writer

	NoCache bool

	// KeepBase skips removing the upstream image after a build.
	KeepBase bool
}

// Options selects one image to build.
type Options struct {
	// Version is the tag of the resulting image; defaults to latest.
	Version string

	// Force rebuilds even when the image exists.
	Force bool
}

// New returns a Builder for cfg.
func New(rt runtime.Runtime, cfg *config.Config, out io.Writer) *Builder {
	return &Builder{Runtime: rt, ImagePrefix: cfg.ImagePrefix, Out: out}
}

// BaseImage returns the upstream image a version builds from.
func BaseImage(d browser.Descriptor, version string) string {
	return d.BaseImage + ":" + d.BaseTag(version)
}

// Dockerfile returns the build recipe on top of base.
func Dockerfile(base string) string {
	return fmt.Sprintf(dockerfileTemplate, base, config.ContainerRecordingDir)
}

// Build builds the image for one browser, unless it already exists and
// opts.Force is not set.
func (b *Builder) Build(ctx context.Context, t browser.Type, opts Options) (Result, error) {
	d, ok := browser.Lookup(t)
	if !ok {
		return "", errors.ValidationError(fmt.Sprintf("unsupported browser %q", t))
	}
	version := opts.Version
	if version == "" {
		version = browser.DefaultVersion
	}
	tag := browser.Identity{Type: t, Version: version}.Image(b.ImagePrefix)

	if !opts.Force {
		exists, err := b.Runtime.ImageExists(ctx, tag)
		if err != nil {
			return "", errors.ContainerFailed("image inspect", err)
		}
		if exists {
			logging.UserInfo("SKIPPED: %s already exists", tag)
			return Skipped, nil
		}
	}

	base := BaseImage(d, version)
	logging.UserInfo("Building %s from %s", tag, base)

	out := b.Out
	if out == nil {
		out = io.Discard
	}
	err := b.Runtime.Build(ctx, runtime.BuildOptions{
		Tag:        tag,
		Dockerfile: Dockerfile(base),
		NoCache:    b.NoCache,
	}, out)
	if err != nil {
		return "", errors.ContainerFailed("build "+tag, err)
	}

	if !b.KeepBase {
		if err := b.Runtime.RemoveImage(ctx, base, true); err != nil {
			logging.Debug("failed to remove base image", "image", base, "error", err)
		}
	}

	logging.UserSuccess("Built %s", tag)
	return Built, nil
}

// BuildAll builds each browser in order and stops at the first failure.
func (b *Builder) BuildAll(ctx context.Context, types []browser.Type, opts Options) (map[browser.Type]Result, error) {
	results := make(map[browser.Type]Result, len(types))
	for _, t := range types {
		res, err := b.Build(ctx, t, opts)
		if err != nil {
			return results, err
		}
		results[t] = res
	}
	return results, nil
}
