package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

// cfg returns the loaded configuration.
func cfg() *config.Config {
	return app.Default.Config
}

// getRuntime returns the application runtime, detecting it on first use.
func getRuntime(ctx context.Context) (runtime.Runtime, error) {
	return app.Default.ContainerRuntime(ctx)
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// listSandboxes lists containers carrying the sandbox container prefix.
func listSandboxes(ctx context.Context, rt runtime.Runtime) ([]*runtime.ContainerInfo, error) {
	containers, err := rt.List(ctx, cfg().ContainerPrefix)
	if err != nil {
		return nil, errors.ContainerFailed("list", err)
	}
	var out []*runtime.ContainerInfo
	for _, c := range containers {
		if strings.HasPrefix(c.Name, cfg().ContainerPrefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

// findSandbox resolves a session name, container name or id prefix to a
// sandbox container, or returns SessionNotFound.
func findSandbox(ctx context.Context, rt runtime.Runtime, ref string) (*runtime.ContainerInfo, error) {
	containers, err := listSandboxes(ctx, rt)
	if err != nil {
		return nil, err
	}
	for _, c := range containers {
		if c.Name == ref || c.Name == cfg().ContainerPrefix+ref {
			return c, nil
		}
	}
	if len(ref) >= 4 {
		for _, c := range containers {
			if strings.HasPrefix(c.ID, ref) {
				return c, nil
			}
		}
	}
	return nil, errors.SessionNotFound(ref)
}

// sessionName strips the container prefix from a container name.
func sessionName(containerName string) string {
	return strings.TrimPrefix(containerName, cfg().ContainerPrefix)
}

// shortID truncates a container id for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
