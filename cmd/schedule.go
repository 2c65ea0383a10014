package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/errors"
	"github.com/firefly-engineering/browserbox/internal/schedule"
)

var (
	scheduleWorkers int
	scheduleOutput  string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <manifest>",
	Short: "Partition test nodes across workers",
	Long: `Group the nodes of a manifest by browser identity, or by file when a node
has none, and assign whole groups to workers balancing their cost.

The manifest is YAML (.yaml/.yml) with a nodes list, or a plain text file
with one node id per line. The plan is printed as YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().IntVarP(&scheduleWorkers, "workers", "P", 1, "Number of workers")
	scheduleCmd.Flags().StringVarP(&scheduleOutput, "output", "o", "", "Write the plan to a file instead of stdout")
	rootCmd.AddCommand(scheduleCmd)
}

func loadManifest(path string) (*schedule.Manifest, error) {
	m, err := schedule.LoadManifest(path)
	if err != nil {
		return nil, errors.ConfigError("failed to load manifest", err)
	}
	return m, nil
}

// loadPlan reads the manifest and partitions it across workers.
func loadPlan(path string, workers int) (*schedule.Manifest, *schedule.Plan, error) {
	m, err := loadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	plan, err := schedule.Partition(m.Nodes, workers)
	if err != nil {
		return nil, nil, errors.ValidationError(err.Error())
	}
	return m, plan, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	_, plan, err := loadPlan(args[0], scheduleWorkers)
	if err != nil {
		return err
	}

	if scheduleOutput != "" {
		if err := schedule.SavePlan(scheduleOutput, plan); err != nil {
			return err
		}
		for _, a := range plan.Assignments {
			logInfo("Worker %d: %d groups, %d nodes, cost %.1f", a.Worker, len(a.Groups), a.NodeCount(), a.Cost)
		}
		logSuccess("Plan written to %s", scheduleOutput)
		return nil
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	if err := plan.WriteYAML(out); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if idle := plan.Workers - len(plan.Active()); idle > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "# %d worker(s) have no work\n", idle)
	}
	return nil
}
