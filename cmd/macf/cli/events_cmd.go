package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/eventlog"
)

// newEventsCmd builds `macf events {append,query,query-set,stats,gaps,
// history,diff}`, the operator-facing side of the Event Log (spec §4.C).
func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Append to and query the event log",
	}
	cmd.AddCommand(newEventsAppendCmd())
	cmd.AddCommand(newEventsQueryCmd())
	cmd.AddCommand(newEventsQuerySetCmd())
	cmd.AddCommand(newEventsHistoryCmd())
	cmd.AddCommand(newEventsDiffCmd())
	return cmd
}

func newEventsAppendCmd() *cobra.Command {
	var name, sessionID, promptUUID, dataJSON string
	c := &cobra.Command{
		Use:   "append",
		Short: "Append one event, breadcrumb-stamped from the current reconciled identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}

			var data map[string]any
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
					return NewSilentError(fmt.Errorf("events append: --data is not a JSON object: %w", err))
				}
			}

			if err := appendEvent(rt, newEvent(rt, name, sessionID, promptUUID, data)); err != nil {
				return NewSilentError(err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&name, "event", "", "event name")
	c.Flags().StringVar(&sessionID, "session", "", "session id to stamp the breadcrumb with")
	c.Flags().StringVar(&promptUUID, "prompt", "", "prompt uuid to stamp the breadcrumb with")
	c.Flags().StringVar(&dataJSON, "data", "", "event data, as a JSON object")
	_ = c.MarkFlagRequired("event")
	_ = c.MarkFlagRequired("session")
	return c
}

func newEventsQueryCmd() *cobra.Command {
	var eventName, git, sessionComponent, promptComponent string
	var cycle int
	var hasCycle bool
	c := &cobra.Command{
		Use:   "query",
		Short: "Query the event log with a conjunctive filter set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			f := eventlog.Filters{
				EventName:   eventName,
				BreadcrumbG: git,
				BreadcrumbS: sessionComponent,
				BreadcrumbP: promptComponent,
			}
			if hasCycle {
				f.BreadcrumbC = &cycle
			}
			events, err := rt.reader.Query(f)
			if err != nil {
				return NewSilentError(err)
			}
			return encodeEvents(cmd, events)
		},
	}
	c.Flags().StringVar(&eventName, "event", "", "exact event name")
	c.Flags().StringVar(&git, "git", "", "breadcrumb git component (7 hex, or \"unknown\")")
	c.Flags().StringVar(&sessionComponent, "session", "", "breadcrumb session component (8 hex digest)")
	c.Flags().StringVar(&promptComponent, "prompt", "", "breadcrumb prompt component (8 hex digest, or \"none\")")
	c.Flags().IntVar(&cycle, "cycle", 0, "breadcrumb cycle component")
	c.PreRunE = func(cmd *cobra.Command, _ []string) error {
		hasCycle = cmd.Flags().Changed("cycle")
		return nil
	}
	return c
}

func newEventsQuerySetCmd() *cobra.Command {
	var eventNames []string
	var op string
	c := &cobra.Command{
		Use:   "query-set",
		Short: "Combine multiple --event queries with union/intersection/subtraction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			queries := make([]eventlog.Filters, len(eventNames))
			for i, n := range eventNames {
				queries[i] = eventlog.Filters{EventName: n}
			}
			events, err := rt.reader.QuerySet(queries, eventlog.SetOp(op))
			if err != nil {
				return NewSilentError(err)
			}
			return encodeEvents(cmd, events)
		},
	}
	c.Flags().StringSliceVar(&eventNames, "event", nil, "event name query (repeatable)")
	c.Flags().StringVar(&op, "op", "union", "union | intersection | subtraction")
	_ = c.MarkFlagRequired("event")
	return c
}

func newEventsHistoryCmd() *cobra.Command {
	var asOf float64
	c := &cobra.Command{
		Use:   "history",
		Short: "Reconstruct session_id/cycle state as of a timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			st, err := rt.reader.ReconstructStateAt(asOf)
			if err != nil {
				return NewSilentError(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	c.Flags().Float64Var(&asOf, "as-of", 0, "unix epoch seconds (0 = now)")
	return c
}

func newEventsDiffCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "diff <t1> <t2>",
		Short: "Unified diff of reconstructed state between two timestamps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t1, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return NewSilentError(fmt.Errorf("events diff: invalid t1: %w", err))
			}
			t2, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return NewSilentError(fmt.Errorf("events diff: invalid t2: %w", err))
			}

			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			st1, err := rt.reader.ReconstructStateAt(t1)
			if err != nil {
				return NewSilentError(err)
			}
			st2, err := rt.reader.ReconstructStateAt(t2)
			if err != nil {
				return NewSilentError(err)
			}

			b1, _ := json.MarshalIndent(st1, "", "  ")
			b2, _ := json.MarshalIndent(st2, "", "  ")

			dmp := diffmatchpatch.New()
			diffs := dmp.DiffMain(string(b1), string(b2), false)
			fmt.Fprintln(cmd.OutOrStdout(), dmp.DiffPrettyText(diffs))
			return nil
		},
	}
	return c
}

func encodeEvents(cmd *cobra.Command, events []eventlog.Event) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return NewSilentError(err)
		}
	}
	return nil
}
