package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/taskrun/internal/taskservice"
	"github.com/haasonsaas/taskrun/pkg/models"
)

func buildCreateCmd(cfgPath *string) *cobra.Command {
	var (
		title    string
		intent   string
		priority string
		agentID  string
		parent   string
		author   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()

			task, err := a.service.CreateTask(cmd.Context(), taskservice.CreateTaskRequest{
				Title:         title,
				Intent:        intent,
				Priority:      models.Priority(priority),
				AgentID:       agentID,
				ParentTaskID:  parent,
				AuthorActorID: author,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&intent, "intent", "", "task intent")
	cmd.Flags().StringVar(&priority, "priority", string(models.PriorityNormal), "foreground, normal, or background")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id to assign the task to")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id, for subtasks")
	cmd.Flags().StringVar(&author, "author", "cli", "actor id recorded as the command's author")
	cmd.MarkFlagRequired("title")

	return cmd
}
