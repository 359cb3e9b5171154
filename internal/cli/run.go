package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/animgraph/internal/compiler"
	"github.com/roach88/animgraph/internal/engine"
	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/sink"
	"github.com/roach88/animgraph/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	FPS      int
	Frames   int
	Strict   bool
	Sets     []string // "id=json-value"

	// SessionGenerator allows overriding the session token generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionGenerator
}

// RunSummary describes a finished run.
type RunSummary struct {
	Session     string `json:"session"`
	Hash        string `json:"definition_hash"`
	Frames      int    `json:"frames"`
	Passes      int    `json:"passes"`
	SinkUpdates int    `json:"sink_updates"`
	Diagnostics int    `json:"diagnostics"`
	LastSeq     int64  `json:"last_seq"`

	// Channels counts the partitioned updates each host channel received.
	Channels map[string]int `json:"channels"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <graph-dir>",
		Short: "Run a graph definition against a frame clock",
		Long: `Load a graph definition into the engine and tick it at a fixed frame rate.

Every command, sink update and diagnostic is recorded in the SQLite
database (created if it doesn't exist) under a new session. Sink updates
are logged per host channel at debug level; use --verbose to see them.

Without --frames the run continues until interrupted.

Example:
  animgraph run --db ./anim.db ./graphs/parallax
  animgraph run --db ./anim.db --frames 120 --set 1=50 ./graphs/parallax`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.FPS, "fps", 60, "frames per second")
	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "number of frames to run (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "panic on registry corruption")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "set a value node before the first frame (id=json)")

	return cmd
}

// setValue is one parsed --set flag.
type setValue struct {
	id    ir.NodeID
	value ir.Value
}

// parseSet parses "id=json-value".
func parseSet(s string) (setValue, error) {
	idStr, raw, ok := strings.Cut(s, "=")
	if !ok {
		return setValue{}, fmt.Errorf("invalid --set %q: expected id=value", s)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return setValue{}, fmt.Errorf("invalid --set %q: node id: %w", s, err)
	}
	v, err := ir.UnmarshalValue([]byte(raw))
	if err != nil {
		return setValue{}, fmt.Errorf("invalid --set %q: value: %w", s, err)
	}
	return setValue{id: ir.NodeID(id), value: v}, nil
}

func runEngine(opts *RunOptions, dir string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if opts.FPS <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --fps %d: must be positive", opts.FPS))
	}
	sets := make([]setValue, 0, len(opts.Sets))
	for _, s := range opts.Sets {
		sv, err := parseSet(s)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid flag", err)
		}
		sets = append(sets, sv)
	}

	logger.Info("compiling definition", "dir", dir)
	def, err := compiler.LoadDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile definition", err)
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash definition", err)
	}
	logger.Info("definition compiled", "nodes", len(def.Nodes), "hash", hash)

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Each channel logs its updates and counts them for the summary.
	counters := make(map[sink.Channel]*sink.Recorder)
	channel := func(ch sink.Channel) sink.Multi {
		counters[ch] = sink.NewRecorder()
		return sink.Multi{
			sink.Logging{Logger: logger.With("channel", string(ch))},
			counters[ch],
		}
	}
	host := sink.NewPartition(def.Props,
		channel(sink.ChannelUI), channel(sink.ChannelNative), channel(sink.ChannelJS))

	gen := opts.SessionGenerator
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}
	eng := engine.New(host,
		engine.WithSessionGenerator(gen),
		engine.WithRecorder(st),
		engine.WithLogger(logger),
		engine.WithGraphOptions(graph.WithStrict(opts.Strict)),
	)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	// The session row must exist before the first command is recorded.
	if err := st.WriteSession(parentCtx, store.Session{
		ID:                eng.Session(),
		DefinitionHash:    hash,
		DefinitionVersion: ir.DefinitionVersion,
		EngineVersion:     ir.EngineVersion,
		Source:            dir,
		Definition:        def.ToBundle(),
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to write session", err)
	}

	// The engine loop outlives the frame loop so queued commands drain
	// after an interrupt.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()

	summary, driveErr := driveFrames(parentCtx, opts, eng, def, sets, logger.Info)

	eng.Stop()
	if err := <-done; err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	summary.Session = eng.Session()
	summary.Hash = hash
	summary.LastSeq = eng.Seq()
	closeCtx := context.Background()
	if err := st.CloseSession(closeCtx, eng.Session(), summary.LastSeq); err != nil {
		return WrapExitError(ExitCommandError, "failed to close session", err)
	}
	if driveErr != nil {
		return WrapExitError(ExitFailure, "run failed", driveErr)
	}

	updates, err := st.ReadSinkUpdates(closeCtx, summary.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sink updates", err)
	}
	diags, err := st.ReadDiagnostics(closeCtx, summary.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read diagnostics", err)
	}
	summary.SinkUpdates = len(updates)
	summary.Diagnostics = len(diags)
	summary.Channels = make(map[string]int, len(counters))
	for ch, rec := range counters {
		summary.Channels[string(ch)] = rec.Len()
	}

	logger.Info("engine stopped gracefully", "session", summary.Session)
	return outputRunSummary(cmd, opts, summary)
}

// driveFrames loads the definition, applies the initial sets and ticks the
// engine until the frame count is reached or the process is interrupted.
func driveFrames(parent context.Context, opts *RunOptions, eng *engine.Engine, def *ir.GraphDef, sets []setValue, info func(string, ...any)) (RunSummary, error) {
	var summary RunSummary

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := eng.Load(ctx, def); err != nil {
		return summary, fmt.Errorf("loading definition: %w", err)
	}
	for _, sv := range sets {
		if err := eng.SetValue(ctx, sv.id, sv.value); err != nil {
			return summary, fmt.Errorf("set node %d: %w", sv.id, err)
		}
		if err := eng.MarkUpdated(ctx, sv.id); err != nil {
			return summary, fmt.Errorf("set node %d: %w", sv.id, err)
		}
	}

	frames := engine.FrameSource{
		Interval: time.Second / time.Duration(opts.FPS),
		Frames:   opts.Frames,
		OnPass:   func(graph.PassReport) { summary.Passes++ },
	}
	info("engine running", "fps", opts.FPS, "frames", opts.Frames)

	err := frames.Drive(ctx, eng)
	summary.Frames = opts.Frames
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return summary, nil
	}
	return summary, err
}

func outputRunSummary(cmd *cobra.Command, opts *RunOptions, summary RunSummary) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session: %s\n", summary.Session)
	fmt.Fprintf(w, "Definition: %s\n", summary.Hash)
	fmt.Fprintf(w, "  Passes: %d\n", summary.Passes)
	fmt.Fprintf(w, "  Sink updates: %d (ui %d, native %d, js %d)\n", summary.SinkUpdates,
		summary.Channels[string(sink.ChannelUI)],
		summary.Channels[string(sink.ChannelNative)],
		summary.Channels[string(sink.ChannelJS)])
	fmt.Fprintf(w, "  Diagnostics: %d\n", summary.Diagnostics)
	fmt.Fprintf(w, "  Last seq: %d\n", summary.LastSeq)
	return nil
}
