package cmd

import (
	"fmt"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/logging"
	"github.com/firefly-engineering/browserbox/internal/runtime"
)

var execUser string

var execCmd = &cobra.Command{
	Use:   "exec <name> -- <command> [args...]",
	Short: "Run a command inside a sandbox",
	Example: `  browserbox exec chrome-0-1a2b3c4d -- ls /tmp/screencast
  browserbox exec chrome-0-1a2b3c4d --user seluser -- env`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execUser, "user", "u", "root", "User to run the command as")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	rt, err := getRuntime(ctx)
	if err != nil {
		return err
	}

	c, err := findSandbox(ctx, rt, args[0])
	if err != nil {
		return err
	}

	command := shellquote.Join(args[1:]...)
	logging.Debug("exec", "container", c.Name, "command", command)

	result, err := rt.Exec(ctx, c.ID, []string{"sh", "-c", command}, runtime.ExecOptions{User: execUser})
	if err != nil {
		return errors.ContainerFailed("exec", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), result.Stdout)
	fmt.Fprint(cmd.ErrOrStderr(), result.Stderr)
	if result.ExitCode != 0 {
		return errors.New(result.ExitCode, fmt.Sprintf("command exited with status %d", result.ExitCode))
	}
	return nil
}
