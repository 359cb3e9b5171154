package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/animgraph/internal/compiler"
	"github.com/roach88/animgraph/internal/engine"
	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/sink"
	"github.com/roach88/animgraph/internal/store"
	"github.com/roach88/animgraph/internal/testutil"
)

// Harness is the test execution engine.
// It drives one engine with a deterministic frame clock and session token.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.FrameClock
	result *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and load the definition, if any
// 2. Start the engine recording into the database
// 3. Execute steps, checking expected errors
// 4. Read back the session log as the trace and replay it
// 5. Evaluate assertions
//
// A returned error means the scenario could not be executed; failed steps
// and assertions are reported in the result instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	def := &ir.GraphDef{}
	source := "scenario:" + scenario.Name
	if scenario.Definition != "" {
		def, err = compiler.LoadDir(scenario.Definition)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition: %w", err)
		}
		source = scenario.Definition
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return nil, fmt.Errorf("failed to hash definition: %w", err)
	}

	channels := map[sink.Channel]*sink.Recorder{
		sink.ChannelUI:     sink.NewRecorder(),
		sink.ChannelNative: sink.NewRecorder(),
		sink.ChannelJS:     sink.NewRecorder(),
	}
	host := sink.NewPartition(def.Props,
		channels[sink.ChannelUI], channels[sink.ChannelNative], channels[sink.ChannelJS])

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	graphOpts := engine.WithGraphOptions(graph.WithStrict(true))
	eng := engine.New(host,
		engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.Session)),
		engine.WithRecorder(st),
		engine.WithLogger(logger),
		graphOpts,
	)

	// The session row must exist before the first command is recorded.
	err = st.WriteSession(ctx, store.Session{
		ID:                eng.Session(),
		DefinitionHash:    hash,
		DefinitionVersion: ir.DefinitionVersion,
		EngineVersion:     ir.EngineVersion,
		Source:            source,
		Definition:        def.ToBundle(),
	})
	if err != nil {
		return nil, err
	}

	h := &Harness{
		engine: eng,
		clock:  testutil.NewFrameClock(scenario.FrameMs),
		result: NewResult(),
	}
	h.result.Session = eng.Session()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()

	if err := h.execute(ctx, scenario, def); err != nil {
		cancel()
		<-done
		return nil, err
	}

	eng.Stop()
	if err := <-done; err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	if err := st.CloseSession(ctx, eng.Session(), eng.Seq()); err != nil {
		return nil, err
	}
	log, err := st.ReadSessionLog(ctx, eng.Session())
	if err != nil {
		return nil, err
	}

	result := h.result
	result.Trace = BuildTrace(log)
	for ch, rec := range channels {
		result.Channels[ch] = rec.Updates()
	}

	replay, err := engine.Replay(ctx, log, engine.WithLogger(logger), graphOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to replay session: %w", err)
	}
	result.Replay = &replay
	for _, m := range replay.Mismatches {
		result.AddError("replay diverged: " + m.String())
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute loads the definition, runs the steps and reads final values while
// the engine is still running.
func (h *Harness) execute(ctx context.Context, scenario *Scenario, def *ir.GraphDef) error {
	if err := h.engine.Load(ctx, def); err != nil {
		return fmt.Errorf("failed to load definition into engine: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return err
		}
	}

	for _, a := range scenario.Assertions {
		if a.Type != AssertFinalValue {
			continue
		}
		id := ir.NodeID(a.Node)
		v, err := h.engine.Value(ctx, id)
		if errors.Is(err, engine.ErrStopped) {
			return err
		}
		if err == nil {
			h.result.Values[id] = v
		}
	}
	return nil
}

// executeStep applies one step. Only infrastructure failures are returned;
// a step that fails differently than expected is recorded in the result.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	name, _ := step.action()
	err := h.apply(ctx, index, step)
	if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("steps[%d] %s: %w", index, name, err)
	}

	got := string(graph.CodeOf(err))
	switch {
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", index, name, err))
	case step.ExpectError != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got success", index, name, step.ExpectError))
	case step.ExpectError != "" && got != step.ExpectError:
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %v", index, name, step.ExpectError, err))
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, index int, step Step) error {
	eng := h.engine
	switch {
	case step.Create != nil:
		cfg, err := toBundle(step.Create.Config)
		if err != nil {
			return fmt.Errorf("create.config: %w", err)
		}
		return eng.CreateNodeFromConfig(ctx, ir.NodeID(step.Create.ID), ir.Kind(step.Create.Kind), cfg)
	case step.Remove != nil:
		return eng.RemoveNode(ctx, ir.NodeID(*step.Remove))
	case step.Connect != nil:
		return eng.Connect(ctx, ir.NodeID(step.Connect.Parent), ir.NodeID(step.Connect.Child))
	case step.Disconnect != nil:
		return eng.Disconnect(ctx, ir.NodeID(step.Disconnect.Parent), ir.NodeID(step.Disconnect.Child))
	case step.Set != nil:
		v, err := ir.FromAny(step.Set.Value)
		if err != nil {
			return fmt.Errorf("set.value: %w", err)
		}
		return eng.SetValue(ctx, ir.NodeID(step.Set.ID), v)
	case step.Mark != nil:
		return eng.MarkUpdated(ctx, ir.NodeID(*step.Mark))
	case step.View != nil:
		return eng.ConnectToView(ctx, ir.NodeID(step.View.ID), ir.ViewTag(step.View.View))
	case step.Unview != nil:
		return eng.DisconnectFromView(ctx, ir.NodeID(step.Unview.ID), ir.ViewTag(step.Unview.View))
	case step.Attach != nil:
		return eng.AttachEvent(ctx, ir.ViewTag(step.Attach.View), step.Attach.Event, ir.NodeID(step.Attach.ID))
	case step.Detach != nil:
		return eng.DetachEvent(ctx, ir.ViewTag(step.Detach.View), step.Detach.Event, ir.NodeID(step.Detach.ID))
	case step.Dispatch != nil:
		return h.dispatch(ctx, index, step.Dispatch)
	case step.Tick != nil:
		return h.tick(ctx, step.Tick)
	case step.Props != nil:
		return eng.ConfigureProps(ctx, step.Props.UI, step.Props.Native)
	}
	return fmt.Errorf("no action")
}

func (h *Harness) dispatch(ctx context.Context, index int, d *DispatchStep) error {
	payload, err := toBundle(d.Payload)
	if err != nil {
		return fmt.Errorf("dispatch.payload: %w", err)
	}
	handled, err := h.engine.DispatchEvent(ctx, ir.ViewTag(d.View), d.Event, payload)
	if err == nil && d.Handled != nil && *d.Handled != handled {
		h.result.AddError(fmt.Sprintf("steps[%d] dispatch: expected handled=%t, got %t", index, *d.Handled, handled))
	}
	return err
}

func (h *Harness) tick(ctx context.Context, t *TickStep) error {
	count := t.Count
	if count == 0 {
		count = 1
	}
	if t.Time != nil {
		h.clock.Seek(*t.Time)
	}
	for i := 0; i < count; i++ {
		report, err := h.engine.Tick(ctx, h.clock.Next())
		if err != nil {
			return err
		}
		h.result.Passes = append(h.result.Passes, report)
	}
	return nil
}

// toBundle converts decoded YAML into a bundle. A nil map stays nil.
func toBundle(m map[string]any) (ir.Bundle, error) {
	if m == nil {
		return nil, nil
	}
	v, err := ir.FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.Bundle), nil
}
