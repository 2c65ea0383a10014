package sandbox

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

// CleanupOptions configures stale container cleanup.
type CleanupOptions struct {
	// ImagePrefix selects sandbox images: <prefix>-<browser>:<tag>.
	ImagePrefix string

	// DryRun reports matching containers without removing them.
	DryRun bool
}

// SandboxImagePattern matches images produced for prefix, for any
// supported browser and any tag.
func SandboxImagePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + "-(" + strings.Join(browser.SupportedNames(), "|") + "):")
}

// CleanupStale removes every container running a sandbox image, whoever
// started it. It is run before a test run and after an interrupt to clear
// leftovers of crashed processes. Containers that vanish in the meantime
// are not an error. The matching containers are returned.
func CleanupStale(ctx context.Context, rt runtime.Runtime, opts CleanupOptions) ([]*runtime.ContainerInfo, error) {
	containers, err := rt.List(ctx, "")
	if err != nil {
		return nil, errors.ContainerFailed("list", err)
	}

	pattern := SandboxImagePattern(opts.ImagePrefix)
	var stale []*runtime.ContainerInfo
	for _, c := range containers {
		if pattern.MatchString(c.Image) {
			stale = append(stale, c)
		}
	}
	if opts.DryRun || len(stale) == 0 {
		return stale, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(teardownParallelism)
	for _, c := range stale {
		g.Go(func() error {
			logging.Debug("removing stale container", "name", c.Name, "image", c.Image)
			err := rt.Remove(ctx, c.ID, true)
			if err == nil || errors.Is(err, errors.ErrNotFound) {
				return nil
			}
			mu.Lock()
			errs = append(errs, errors.TeardownFailed(c.Name, err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return stale, errors.Join(errs...)
}
