package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/runtime"
	"github.com/firefly-engineering/browserbox/internal/sandbox"
)

var psAll bool

var psCmd = &cobra.Command{
	Use:     "ps",
	Aliases: []string{"list", "ls"},
	Short:   "List sandbox containers",
	Long: `List running sandbox containers.

With --all, every container started from a sandbox image is listed,
including ones started outside browserbox.`,
	RunE: runPs,
}

func init() {
	psCmd.Flags().BoolVarP(&psAll, "all", "a", false, "List every container using a sandbox image")
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	rt, err := getRuntime(ctx)
	if err != nil {
		return err
	}

	var containers []*runtime.ContainerInfo
	if psAll {
		all, err := rt.List(ctx, "")
		if err != nil {
			return errors.ContainerFailed("list", err)
		}
		pattern := sandbox.SandboxImagePattern(cfg().ImagePrefix)
		for _, c := range all {
			if pattern.MatchString(c.Image) {
				containers = append(containers, c)
			}
		}
	} else {
		containers, err = listSandboxes(ctx, rt)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if containers == nil {
			containers = []*runtime.ContainerInfo{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(containers)
	}

	if len(containers) == 0 {
		logInfo("No sandboxes found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTAINER ID\tIMAGE\tSTATUS")
	for _, c := range containers {
		status := string(c.Status)
		if c.State != "" {
			status = c.State
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sessionName(c.Name), shortID(c.ID), c.Image, status)
	}
	return w.Flush()
}
