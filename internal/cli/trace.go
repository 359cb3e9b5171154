package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/animgraph/internal/harness"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - defaults to the latest session
	View     int64  // optional - filter sink updates to one view
	Type     string // optional - filter to one event type
}

// traceTypes are the accepted values of --type.
var traceTypes = []string{harness.EventCommand, harness.EventSinkUpdate, harness.EventDiagnostic}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string               `json:"session"`
	Source   string               `json:"source"`
	Hash     string               `json:"definition_hash"`
	Closed   bool                 `json:"closed"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Commands    int `json:"commands"`
	Ticks       int `json:"ticks"`
	SinkUpdates int `json:"sink_updates"`
	Views       int `json:"views"`
	Diagnostics int `json:"diagnostics"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded timeline of a session",
		Long: `Show what a session recorded: the commands applied to the engine, the
sink updates its passes produced and the diagnostics they raised, in
seq order.

The output includes:
- Timeline: Chronological list of commands, sink updates and diagnostics
- Stats: Summary statistics for the session

Examples:
  animgraph trace --db ./anim.db
  animgraph trace --db ./anim.db --session 0190b6c4-... --view 7
  animgraph trace --db ./anim.db --type diagnostic --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace (default: latest)")
	cmd.Flags().Int64Var(&opts.View, "view", 0, "filter sink updates to a view tag")
	cmd.Flags().StringVar(&opts.Type, "type", "", "filter to an event type (command|sink_update|diagnostic)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Type != "" && !slices.Contains(traceTypes, opts.Type) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --type %q: must be one of %v", opts.Type, traceTypes))
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	sessionID := opts.Session
	if sessionID == "" {
		latest, err := st.LatestSession(ctx)
		if errors.Is(err, store.ErrSessionNotFound) {
			if opts.Format == "json" {
				return outputTraceJSON(cmd, TraceResult{Timeline: []harness.TraceEvent{}})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read latest session", err)
		}
		sessionID = latest.ID
	}

	log, err := st.ReadSessionLog(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("session %s not found", sessionID), err)
		}
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if opts.View != 0 {
		log.SinkUpdates, err = st.ReadSinkUpdatesForView(ctx, sessionID, ir.ViewTag(opts.View))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sink updates", err)
		}
	}

	timeline := filterTimeline(harness.BuildTrace(log), opts.Type)
	result := TraceResult{
		Session:  log.Session.ID,
		Source:   log.Session.Source,
		Hash:     log.Session.DefinitionHash,
		Closed:   log.Session.Closed,
		Timeline: timeline,
		Stats:    calculateTraceStats(timeline),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// filterTimeline keeps the events of one type. An empty type keeps all.
func filterTimeline(events []harness.TraceEvent, typ string) []harness.TraceEvent {
	if typ == "" {
		return events
	}
	out := []harness.TraceEvent{}
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func calculateTraceStats(events []harness.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	views := make(map[ir.ViewTag]bool)
	for _, ev := range events {
		switch ev.Type {
		case harness.EventCommand:
			stats.Commands++
			if ev.Op == "tick" {
				stats.Ticks++
			}
		case harness.EventSinkUpdate:
			stats.SinkUpdates++
			views[ev.View] = true
		case harness.EventDiagnostic:
			stats.Diagnostics++
		}
	}
	stats.Views = len(views)
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	fmt.Fprintf(w, "Source: %s\n", result.Source)
	fmt.Fprintf(w, "Status: %s\n", closedStatus(result.Closed))
	if verbose {
		fmt.Fprintf(w, "Definition: %s\n", result.Hash)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Commands:     %d (%d ticks)\n", result.Stats.Commands, result.Stats.Ticks)
	fmt.Fprintf(w, "  Sink Updates: %d (%d views)\n", result.Stats.SinkUpdates, result.Stats.Views)
	fmt.Fprintf(w, "  Diagnostics:  %d\n", result.Stats.Diagnostics)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event harness.TraceEvent) {
	switch event.Type {
	case harness.EventCommand:
		fmt.Fprintf(w, "  [%d] CMD  %s %s\n", event.Seq, event.Op, formatBundle(event.Args))
	case harness.EventSinkUpdate:
		fmt.Fprintf(w, "  [%d] SINK view=%d loop=%d %s\n", event.Seq, event.View, event.LoopID, formatBundle(event.Props))
	case harness.EventDiagnostic:
		fmt.Fprintf(w, "  [%d] DIAG %s node=%d loop=%d: %s\n", event.Seq, event.Code, event.NodeID, event.LoopID, event.Message)
	}
}

// formatBundle renders a bundle as canonical JSON, so keys print sorted.
func formatBundle(b ir.Bundle) string {
	if len(b) == 0 {
		return "{}"
	}
	data, err := ir.MarshalCanonical(b)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// closedStatus returns a human-readable session status.
func closedStatus(closed bool) string {
	if closed {
		return "Closed"
	}
	return "Open (the run may still be recording or was interrupted)"
}
