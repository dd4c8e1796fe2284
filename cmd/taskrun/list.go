package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/taskrun/internal/taskproj"
	"github.com/haasonsaas/taskrun/pkg/models"
)

// buildListCmd lists tasks by scanning the full event log for TaskCreated
// events and folding each task's stream; there is no dedicated listing
// method on the Task Service, mirroring how C10's tests discover child
// tasks by polling the log rather than a query index.
func buildListCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()

			ctx := cmd.Context()
			all, err := a.store.ReadAll(ctx, 0)
			if err != nil {
				return err
			}

			seen := map[string]bool{}
			var taskIDs []string
			for _, ev := range all {
				if ev.Event.Type == models.EventTaskCreated && !seen[ev.StreamID] {
					seen[ev.StreamID] = true
					taskIDs = append(taskIDs, ev.StreamID)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-36s  %-13s  %-16s  %s\n", "ID", "STATUS", "AGENT", "TITLE")
			for _, id := range taskIDs {
				events, err := a.store.ReadStream(ctx, id, 0)
				if err != nil {
					return err
				}
				task, err := taskproj.Fold(events)
				if err != nil {
					continue
				}
				fmt.Fprintf(out, "%-36s  %-13s  %-16s  %s\n", task.ID, task.Status, task.AgentID, task.Title)
			}
			return nil
		},
	}
	return cmd
}
