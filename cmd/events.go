package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/browserbox/internal/app"
)

var eventsCmd = &cobra.Command{
	Use:   "events [name]",
	Short: "Display the event trail for a sandbox",
	Long: `Display the lifecycle events recorded for a sandbox session.

Without a name, lists the sessions that have recorded events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger := app.Default.Audit

	if len(args) == 0 {
		sessions, err := logger.Sessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessions) == 0 {
			logInfo("No sessions recorded in %s", logger.Dir())
			return nil
		}
		for _, s := range sessions {
			fmt.Fprintln(out, s)
		}
		return nil
	}

	name := args[0]
	events, err := logger.Events(name)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	if len(events) == 0 {
		logInfo("No events found for sandbox %s", name)
		return nil
	}

	for _, e := range events {
		if jsonOutput {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}
		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		if e.Details != "" {
			fmt.Fprintf(out, "[%s] %-12s %s (%s)\n", ts, e.Type, e.Session, e.Details)
		} else {
			fmt.Fprintf(out, "[%s] %-12s %s\n", ts, e.Type, e.Session)
		}
	}
	return nil
}
