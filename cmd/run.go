package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
	"github.com/firefly-engineering/browserbox/internal/schedule"
	"github.com/firefly-engineering/browserbox/internal/system"
)

var (
	runWorkers   int
	runNoCleanup bool
	runKeepPlan  bool
)

// selfExecutable locates the binary workers are started from. Replaced in tests.
var selfExecutable = os.Executable

var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Run a manifest across parallel workers",
	Long: `Partition the manifest across workers and start one worker process per
non-empty assignment. Each worker owns a slot, so sandboxes on different
workers never share host ports.

Stale sandbox containers are removed before the run starts and after an
interrupt. Ctrl-C is forwarded to every worker, which tears down its own
sandboxes.`,
	Example: `  browserbox run tests.yaml -P 4
  browserbox run nodes.txt -P 2 --no-cleanup`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runWorkers, "workers", "P", 1, "Number of parallel workers")
	runCmd.Flags().BoolVar(&runNoCleanup, "no-cleanup", false, "Skip removing stale sandbox containers before the run")
	runCmd.Flags().BoolVar(&runKeepPlan, "keep-plan", false, "Keep the plan file in the state directory")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	manifestPath, err := filepath.Abs(args[0])
	if err != nil {
		return errors.ConfigError("invalid manifest path", err)
	}
	m, plan, err := loadPlan(manifestPath, runWorkers)
	if err != nil {
		return err
	}
	if len(m.Command) == 0 {
		return errors.ValidationError("manifest has no command")
	}

	a := app.Default
	ctx, release := sandbox.Guard(commandContext(cmd), a.Registry)
	defer release()

	if !runNoCleanup {
		if err := cleanupStale(ctx); err != nil {
			return err
		}
	}

	planPath, err := writeRunPlan(plan)
	if err != nil {
		return err
	}
	if !runKeepPlan {
		defer os.Remove(planPath)
	}
	logging.Debug("plan written", "path", planPath)

	exe, err := selfExecutable()
	if err != nil {
		return fmt.Errorf("failed to locate browserbox executable: %w", err)
	}

	active := plan.Active()
	logInfo("Running %d nodes on %d workers", len(m.Nodes), len(active))

	// Workers get their own signal; the context must not kill them first.
	procCtx := context.WithoutCancel(ctx)
	exec := system.DefaultExecutor()

	var (
		mu    sync.Mutex
		procs []system.Process
	)
	results := make([]error, len(active))
	var g errgroup.Group
	for i, as := range active {
		workerArgs := workerArgs(manifestPath, planPath, as.Worker)
		proc, err := exec.Start(procCtx, system.StartOptions{
			Env:    []string{config.EnvWorker + "=" + strconv.Itoa(as.Worker)},
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		}, exe, workerArgs...)
		if err != nil {
			results[i] = err
			continue
		}
		mu.Lock()
		procs = append(procs, proc)
		mu.Unlock()

		g.Go(func() error {
			results[i] = proc.Wait()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if sandbox.Interrupted(ctx) {
				mu.Lock()
				for _, p := range procs {
					_ = p.Signal(os.Interrupt)
				}
				mu.Unlock()
			}
		case <-done:
		}
	}()
	_ = g.Wait()
	close(done)

	if sandbox.Interrupted(ctx) {
		if err := cleanupStale(context.WithoutCancel(ctx)); err != nil {
			logging.Warn("cleanup after interrupt incomplete", "error", err)
		}
		return errors.New(errors.ExitInterrupted, "run interrupted")
	}

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			logWarning("Worker %d failed: %v", active[i].Worker, err)
		}
	}
	if failed > 0 {
		return errors.New(errors.ExitTestsFailed, fmt.Sprintf("%d of %d workers failed", failed, len(active)))
	}
	logSuccess("All %d nodes passed", len(m.Nodes))
	return nil
}

func workerArgs(manifestPath, planPath string, slot int) []string {
	args := []string{"worker", manifestPath, "--plan", planPath, "--slot", strconv.Itoa(slot)}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	if jsonOutput {
		args = append(args, "--json")
	}
	return args
}

// writeRunPlan saves the plan where workers can read it.
func writeRunPlan(plan *schedule.Plan) (string, error) {
	dir := filepath.Join(cfg().StateDir, "runs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	path := filepath.Join(dir, "plan-"+uuid.NewString()+".yaml")
	if err := schedule.SavePlan(path, plan); err != nil {
		return "", err
	}
	return path, nil
}

// cleanupStale removes containers left behind by earlier runs.
func cleanupStale(ctx context.Context) error {
	rt, err := getRuntime(ctx)
	if err != nil {
		return err
	}
	removed, err := sandbox.CleanupStale(ctx, rt, sandbox.CleanupOptions{ImagePrefix: cfg().ImagePrefix})
	for _, c := range removed {
		logInfo("Removed stale container %s", c.Name)
	}
	return err
}
