package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/animgraph/internal/engine"
	"github.com/roach88/animgraph/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session    string   `json:"session"`
	Commands   int      `json:"commands"`
	Recorded   int      `json:"recorded_updates"`
	Replayed   int      `json:"replayed_updates"`
	Closed     bool     `json:"closed"`
	Reproduced bool     `json:"reproduced"`
	Mismatches []string `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllReproduced bool                  `json:"all_reproduced"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and verify their sink updates",
		Long: `Re-execute the recorded commands of each session on a fresh graph and
compare the sink updates produced with the recorded ones.

Exit codes:
  0 - Every session reproduced its recorded updates
  1 - At least one session diverged
  2 - Command error (database not found, etc.)

Examples:
  animgraph replay --db ./anim.db
  animgraph replay --db ./anim.db --session 0190b6c4-...
  animgraph replay --db ./anim.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sessions []string
	if opts.Session != "" {
		sessions = []string{opts.Session}
	} else {
		all, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range all {
			sessions = append(sessions, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllReproduced: true,
	}

	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
		return nil
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	for _, id := range sessions {
		sessionResult, err := replaySession(ctx, st, id, engine.WithLogger(logger))
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("session %s not found", id), err)
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}

		result.Sessions = append(result.Sessions, sessionResult)
		if !sessionResult.Reproduced {
			result.AllReproduced = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replaySession replays one recorded session.
func replaySession(ctx context.Context, st *store.Store, id string, opts ...engine.Option) (ReplaySessionResult, error) {
	log, err := st.ReadSessionLog(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	res, err := engine.Replay(ctx, log, opts...)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	out := ReplaySessionResult{
		Session:    id,
		Commands:   res.Commands,
		Recorded:   res.Recorded,
		Replayed:   res.Replayed,
		Closed:     log.Session.Closed,
		Reproduced: res.OK(),
	}
	for _, m := range res.Mismatches {
		out.Mismatches = append(out.Mismatches, m.String())
	}
	return out, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllReproduced {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplay,
			Message: "replay diverged from the recorded sink updates",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllReproduced {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Reproduced {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Commands: %d, updates: %d recorded, %d replayed\n", s.Commands, s.Recorded, s.Replayed)
		if verbose && !s.Closed {
			fmt.Fprintln(w, "  Session was not closed; the recording may be truncated")
		}

		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "  %s\n", m)
		}
		fmt.Fprintln(w)
	}

	if result.AllReproduced {
		fmt.Fprintln(w, "✓ All sessions reproduced")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}

// openExistingStore opens a database that must already exist. store.Open
// would silently create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
