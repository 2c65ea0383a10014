package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
	"github.com/firefly-engineering/browserbox/internal/schedule"
	"github.com/firefly-engineering/browserbox/internal/system"
)

// EnvNode carries the node id to the test command.
const EnvNode = "BROWSERBOX_NODE"

var (
	workerSlot    int
	workerPlan    string
	workerWorkers int
)

var workerCmd = &cobra.Command{
	Use:   "worker <manifest>",
	Short: "Run the groups assigned to one worker slot",
	Long: `Run the groups a plan assigns to one worker slot. Each group gets its own
sandbox on the slot's ports, and the manifest command runs once per node.

Normally started by 'browserbox run'.`,
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerSlot, "slot", -1, "Worker slot (default from $"+config.EnvWorker+")")
	workerCmd.Flags().StringVar(&workerPlan, "plan", "", "Plan file written by 'browserbox schedule' or 'run'")
	workerCmd.Flags().IntVarP(&workerWorkers, "workers", "P", 1, "Worker count used to compute the plan when --plan is not given")
	rootCmd.AddCommand(workerCmd)
}

// workerSlotFromEnv is stricter than up: a scheduled worker must know its slot.
func workerSlotFromEnv(flag int) (int, error) {
	if flag >= 0 {
		return flag, nil
	}
	slot, set, err := config.WorkerSlot(nil)
	if err != nil {
		return 0, errors.ConfigError("invalid worker slot", err)
	}
	if !set {
		return 0, errors.ConfigError("worker slot not set", fmt.Errorf("pass --slot or set %s", config.EnvWorker))
	}
	return slot, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	slot, err := workerSlotFromEnv(workerSlot)
	if err != nil {
		return err
	}

	var (
		m    *schedule.Manifest
		plan *schedule.Plan
	)
	if workerPlan != "" {
		if m, err = loadManifest(args[0]); err != nil {
			return err
		}
		if plan, err = schedule.LoadPlan(workerPlan); err != nil {
			return errors.ConfigError("failed to load plan", err)
		}
	} else if m, plan, err = loadPlan(args[0], workerWorkers); err != nil {
		return err
	}
	if len(m.Command) == 0 {
		return errors.ValidationError("manifest has no command")
	}

	logging.SetWorker(slot)
	log := logging.ForWorker(slot)
	assignment, ok := plan.Assignment(slot)
	if !ok || len(assignment.Groups) == 0 {
		log.Info("no work assigned")
		return nil
	}

	a := app.Default
	ctx, release := sandbox.Guard(commandContext(cmd), a.Registry)
	defer release()

	mgr, err := a.Manager(ctx)
	if err != nil {
		return err
	}

	w := &worker{
		slot:     slot,
		manifest: m,
		manager:  mgr,
		exec:     system.DefaultExecutor(),
		log:      log,
		cmd:      cmd,
	}

	total := assignment.NodeCount()
	failed := 0
	for _, g := range assignment.Groups {
		if ctx.Err() != nil {
			break
		}
		failed += w.runGroup(ctx, g)
	}

	if sandbox.Interrupted(ctx) {
		return errors.New(errors.ExitInterrupted, "worker interrupted")
	}
	if failed > 0 {
		return errors.New(errors.ExitTestsFailed, fmt.Sprintf("%d of %d nodes failed on worker %d", failed, total, slot))
	}
	log.Info("worker finished", "nodes", total)
	return nil
}

type worker struct {
	slot     int
	manifest *schedule.Manifest
	manager  *sandbox.Manager
	exec     system.CommandExecutor
	log      *slog.Logger
	cmd      *cobra.Command
}

// identity returns the browser a group runs on.
func (w *worker) identity(g schedule.Group) (browser.Identity, error) {
	if g.Identity != nil {
		return *g.Identity, nil
	}
	if w.manifest.Browser != "" {
		return browser.ParseIdentity(w.manifest.Browser)
	}
	return browser.Identity{Type: browser.Chrome, Version: browser.DefaultVersion}, nil
}

// runGroup provisions one sandbox for the group, runs every node in it and
// deletes it. It returns the number of failed nodes.
func (w *worker) runGroup(ctx context.Context, g schedule.Group) int {
	log := w.log.With("group", g.Key)

	identity, err := w.identity(g)
	if err != nil {
		log.Error("invalid browser for group", "error", err)
		return len(g.Nodes)
	}

	s, err := w.manager.Provision(ctx, sandbox.ProvisionOptions{
		Identity: identity,
		Slot:     w.slot,
		Headless: w.manifest.Headless,
		Record:   w.manifest.Record,
	})
	if err != nil {
		log.Error("provision failed", "identity", identity.String(), "error", err)
		return len(g.Nodes)
	}
	defer func() {
		if err := s.Delete(context.WithoutCancel(ctx)); err != nil {
			log.Warn("sandbox teardown failed", "session", s.Name, "error", err)
		}
	}()
	log.Info("sandbox ready", "session", s.Name, "ports", s.Ports.String())
	if w.manifest.Open && !s.Headless {
		if url, err := s.OpenViewer(true); err != nil {
			log.Warn("failed to open viewer", "session", s.Name, "error", err)
		} else {
			log.Debug("opened viewer", "url", url)
		}
	}

	failed := 0
	for _, n := range g.Nodes {
		if ctx.Err() != nil {
			failed++
			continue
		}
		recording := ""
		if w.manifest.Record {
			recording = n.ID
		}
		err := s.Use(ctx, recording, func(ctx context.Context) error {
			return w.runNode(ctx, s, n.ID)
		})
		if err != nil {
			failed++
			log.Warn("node failed", "node", n.ID, "error", err)
			continue
		}
		log.Debug("node passed", "node", n.ID)
	}
	return failed
}

func (w *worker) runNode(ctx context.Context, s *sandbox.Session, nodeID string) error {
	argv := w.manifest.CommandFor(nodeID)
	proc, err := w.exec.Start(ctx, system.StartOptions{
		Env:    nodeEnv(s, nodeID),
		Stdout: w.cmd.OutOrStdout(),
		Stderr: w.cmd.ErrOrStderr(),
	}, argv[0], argv[1:]...)
	if err != nil {
		return err
	}
	return proc.Wait()
}

// nodeEnv returns the variables added to a node command's environment.
func nodeEnv(s *sandbox.Session, nodeID string) []string {
	vars := s.Env()
	vars[EnvNode] = nodeID
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}
