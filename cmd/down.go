package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/audit"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

var downAll bool

var downCmd = &cobra.Command{
	Use:     "down [name|id...]",
	Aliases: []string{"rm"},
	Short:   "Remove sandbox containers",
	Long: `Force-remove one or more sandbox containers.

Sandboxes are matched by session name, container name or container id
prefix. A sandbox that is already gone is not an error.`,
	RunE: runDown,
}

func init() {
	downCmd.Flags().BoolVar(&downAll, "all", false, "Remove every sandbox container")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	if !downAll && len(args) == 0 {
		return errors.ValidationError("specify at least one sandbox, or --all")
	}

	ctx := commandContext(cmd)
	rt, err := getRuntime(ctx)
	if err != nil {
		return err
	}

	var targets []*runtime.ContainerInfo
	if downAll {
		targets, err = listSandboxes(ctx, rt)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			logInfo("No sandboxes to remove")
			return nil
		}
	} else {
		for _, ref := range args {
			c, err := findSandbox(ctx, rt, ref)
			if err != nil {
				return err
			}
			targets = append(targets, c)
		}
	}

	var errs []error
	for _, c := range targets {
		name := sessionName(c.Name)
		if err := rt.Remove(ctx, c.ID, true); err != nil && !errors.Is(err, errors.ErrNotFound) {
			logWarning("Failed to remove %s: %v", name, err)
			errs = append(errs, errors.TeardownFailed(c.Name, err))
			continue
		}
		if err := app.Default.Audit.LogEvent(audit.EventDelete, name, c.ID, "removed by down"); err != nil {
			logging.Warn("failed to write audit event", "session", name, "error", err)
		}
		logSuccess("Removed %s", name)
	}
	return errors.Join(errs...)
}
