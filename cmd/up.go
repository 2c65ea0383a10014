package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
	"github.com/firefly-engineering/browserbox/internal/browser"
	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/monitor"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
	"github.com/firefly-engineering/browserbox/internal/viewer"
)

var (
	upSlot         int
	upHeadless     bool
	upRecord       bool
	upRecordingDir string
	upOpen         bool
	upViewOnly     bool
	upVNC          bool
	upDetach       bool
	upMonitor      time.Duration
)

// connectVNC is replaced in tests.
var connectVNC = viewer.Connect

var upCmd = &cobra.Command{
	Use:   "up <browser[:version]>",
	Short: "Provision a sandbox and keep it until interrupted",
	Long: `Provision a browser sandbox, wait for it to be ready and print its endpoints.

The sandbox is removed on Ctrl-C or SIGTERM. With --detach it is left running
and must be removed with 'browserbox down'.`,
	Example: `  browserbox up chrome
  browserbox up firefox:120.0 --slot 2 --headless
  browserbox up edge --record --open`,
	Args: cobra.ExactArgs(1),
	RunE: runUp,
}

func init() {
	upCmd.Flags().IntVar(&upSlot, "slot", -1, "Worker slot (default from $"+config.EnvWorker+" or $"+config.EnvXdistWorker+", else 0)")
	upCmd.Flags().BoolVar(&upHeadless, "headless", false, "Run the browser without a virtual display")
	upCmd.Flags().BoolVar(&upRecord, "record", false, "Enable the recording sidecar")
	upCmd.Flags().StringVar(&upRecordingDir, "recording-dir", "", "Host directory for recordings (default from config)")
	upCmd.Flags().BoolVar(&upOpen, "open", false, "Open the display page in a browser once ready")
	upCmd.Flags().BoolVar(&upViewOnly, "view-only", true, "Open the display without input control")
	upCmd.Flags().BoolVar(&upVNC, "vnc", false, "Attach a native VNC viewer (requires vnc_base_port)")
	upCmd.Flags().BoolVarP(&upDetach, "detach", "d", false, "Leave the sandbox running and exit")
	upCmd.Flags().DurationVar(&upMonitor, "monitor", monitor.DefaultInterval, "Health check interval while waiting (0 disables)")
	rootCmd.AddCommand(upCmd)
}

// resolveSlot returns the explicit slot, or the one from the environment.
func resolveSlot(flag int) (int, error) {
	if flag >= 0 {
		return flag, nil
	}
	slot, _, err := config.WorkerSlot(nil)
	if err != nil {
		return 0, errors.ConfigError("invalid worker slot", err)
	}
	return slot, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	identity, err := browser.ParseIdentity(args[0])
	if err != nil {
		return errors.ValidationError(err.Error())
	}
	slot, err := resolveSlot(upSlot)
	if err != nil {
		return err
	}
	if upVNC && cfg().VNCBasePort == 0 {
		return errors.ValidationError("--vnc requires vnc_base_port to be set in the config")
	}

	a := app.Default
	ctx, release := sandbox.Guard(commandContext(cmd), a.Registry)
	defer release()

	mgr, err := a.Manager(ctx)
	if err != nil {
		return err
	}

	logInfo("Provisioning %s on slot %d...", identity, slot)
	s, err := mgr.Provision(ctx, sandbox.ProvisionOptions{
		Identity:     identity,
		Slot:         slot,
		Headless:     upHeadless,
		Record:       upRecord,
		RecordingDir: upRecordingDir,
	})
	if err != nil {
		if sandbox.Interrupted(ctx) {
			return errors.New(errors.ExitInterrupted, "interrupted")
		}
		return err
	}
	logSuccess("Sandbox %s is ready", s.Name)
	printSession(cmd, s)

	if upOpen && !s.Headless {
		if url, err := s.OpenViewer(upViewOnly); err != nil {
			logWarning("Could not open %s: %v", url, err)
		}
	}
	if upVNC && !s.Headless {
		done, err := connectVNC(ctx, s.Host, s.Ports.VNC)
		if err != nil {
			logWarning("Could not start VNC viewer: %v", err)
		} else {
			defer done()
		}
	}

	if upDetach {
		a.Registry.Unregister(s)
		logInfo("Detached; remove with: browserbox down %s", s.Name)
		return nil
	}

	logInfo("Press Ctrl-C to tear down")
	waitCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	if upMonitor > 0 {
		rt, err := a.ContainerRuntime(ctx)
		if err != nil {
			return err
		}
		mon := monitor.New(upMonitor, rt, a.Registry,
			monitor.WithAuditLogger(a.Audit),
			monitor.WithProber(a.Prober),
			monitor.WithOnGone(func(gone *sandbox.Session) {
				stop(fmt.Errorf("sandbox %s is gone", gone.Name))
			}),
		)
		go func() { _ = mon.Run(waitCtx) }()
	}

	<-waitCtx.Done()
	if sandbox.Interrupted(ctx) {
		logging.Debug("up interrupted", "session", s.Name)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.ContainerFailed("monitor", context.Cause(waitCtx))
}

func printSession(cmd *cobra.Command, s *sandbox.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:       %s\n", s.Name)
	fmt.Fprintf(out, "Container:  %s\n", s.ContainerName)
	fmt.Fprintf(out, "Browser:    %s\n", s.Identity)
	fmt.Fprintf(out, "Ports:      %s\n", s.Ports)
	fmt.Fprintf(out, "WebDriver:  %s\n", s.AutomationURL())
	if !s.Headless {
		fmt.Fprintf(out, "Display:    %s\n", s.DisplayURL(false))
	}
	if s.Recorder != nil && s.Recorder.Enabled {
		fmt.Fprintf(out, "Recordings: %s\n", s.RecordingDir)
	}

	env := s.Env()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(out)
	for _, k := range keys {
		fmt.Fprintf(out, "export %s=%s\n", k, env[k])
	}
}
