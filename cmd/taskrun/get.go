package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func buildGetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Print a task's current projected state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()

			task, err := a.service.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(task)
		},
	}
	return cmd
}
