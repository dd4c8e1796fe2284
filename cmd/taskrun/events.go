package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// buildEventsCmd wraps "events tail", a read-only follow of the Event Store
// (C1): it prints every event already in the log, then keeps printing new
// ones published via Store.Subscribe until the command is interrupted.
func buildEventsCmd(cfgPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event log",
	}
	root.AddCommand(buildEventsTailCmd(cfgPath))
	return root
}

func buildEventsTailCmd(cfgPath *string) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events as they are appended to the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer closeApp()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)

			existing, err := a.store.ReadAll(ctx, 0)
			if err != nil {
				return err
			}
			var lastID uint64
			for _, ev := range existing {
				if err := enc.Encode(ev); err != nil {
					return err
				}
				lastID = ev.ID
			}

			if !follow {
				return nil
			}

			ch, unsubscribe := a.store.Subscribe(ctx)
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev, ok := <-ch:
					if !ok {
						return nil
					}
					if ev.ID <= lastID {
						continue
					}
					if err := enc.Encode(ev); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new events after printing the existing log")
	return cmd
}
