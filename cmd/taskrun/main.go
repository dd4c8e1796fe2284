// Command taskrun is the CLI surface over the Task Service (C11) command
// facade and a read-only event tail, grounded on the teacher's cobra
// command-builder idiom (each subcommand built by its own buildXCmd
// function, wired together in newRootCmd).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "taskrun:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "taskrun",
		Short: "Command-line interface to the task execution runtime",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (defaults to $TASKRUN_CONFIG)")

	root.AddCommand(
		buildCreateCmd(&cfgPath),
		buildListCmd(&cfgPath),
		buildGetCmd(&cfgPath),
		buildCancelCmd(&cfgPath),
		buildPauseCmd(&cfgPath),
		buildResumeCmd(&cfgPath),
		buildInstructCmd(&cfgPath),
		buildEventsCmd(&cfgPath),
	)
	return root
}
