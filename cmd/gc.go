package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
)

var gcForce bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove stale sandbox containers and orphaned event logs",
	Long: `Find containers started from sandbox images and event logs whose
sandbox no longer exists.

By default only reports what would be removed. Use --force to remove.`,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVarP(&gcForce, "force", "f", false, "Actually remove (default is dry run)")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	rt, err := getRuntime(ctx)
	if err != nil {
		return err
	}

	stale, err := sandbox.CleanupStale(ctx, rt, sandbox.CleanupOptions{
		ImagePrefix: cfg().ImagePrefix,
		DryRun:      !gcForce,
	})
	for _, c := range stale {
		if gcForce {
			logSuccess("Removed container %s (%s)", c.Name, c.Image)
		} else {
			logWarning("Stale container: %s (%s)", c.Name, c.Image)
		}
	}
	if err != nil {
		return err
	}

	orphans, err := orphanedSessions(ctx)
	if err != nil {
		return err
	}
	for _, name := range orphans {
		if !gcForce {
			logWarning("Orphaned event log: %s", name)
			continue
		}
		if err := app.Default.Audit.Remove(name); err != nil {
			logWarning("Failed to remove event log %s: %v", name, err)
			continue
		}
		logSuccess("Removed event log %s", name)
	}

	if len(stale) == 0 && len(orphans) == 0 {
		logInfo("Nothing to clean up")
	} else if !gcForce {
		logInfo("Run with --force to remove")
	}
	return nil
}

// orphanedSessions returns sessions with an event log but no container.
func orphanedSessions(ctx context.Context) ([]string, error) {
	sessions, err := app.Default.Audit.Sessions()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	rt, err := getRuntime(ctx)
	if err != nil {
		return nil, err
	}
	containers, err := listSandboxes(ctx, rt)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(containers))
	for _, c := range containers {
		live[sessionName(c.Name)] = true
	}

	var orphans []string
	for _, s := range sessions {
		if !live[s] {
			orphans = append(orphans, s)
		}
	}
	return orphans, nil
}
