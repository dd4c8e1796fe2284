package main

import (
	"github.com/spf13/cobra"
)

func buildInstructCmd(cfgPath *string) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "instruct <task-id> <instruction>",
		Short: "Add a steering instruction to a running task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()
			return a.service.AddInstruction(cmd.Context(), args[0], args[1], author)
		},
	}
	cmd.Flags().StringVar(&author, "author", "cli", "actor id recorded as the command's author")
	return cmd
}
