package main

import (
	"github.com/spf13/cobra"
)

func buildCancelCmd(cfgPath *string) *cobra.Command {
	var reason, author string

	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.service.CancelTask(cmd.Context(), args[0], reason, author)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the cancellation event")
	cmd.Flags().StringVar(&author, "author", "cli", "actor id recorded as the command's author")
	return cmd
}

func buildPauseCmd(cfgPath *string) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "pause <task-id>",
		Short: "Pause a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.service.PauseTask(cmd.Context(), args[0], author)
		},
	}
	cmd.Flags().StringVar(&author, "author", "cli", "actor id recorded as the command's author")
	return cmd
}

func buildResumeCmd(cfgPath *string) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Resume a paused task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.service.ResumeTask(cmd.Context(), args[0], author)
		},
	}
	cmd.Flags().StringVar(&author, "author", "cli", "actor id recorded as the command's author")
	return cmd
}
