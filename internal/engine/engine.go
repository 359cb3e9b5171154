package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/store"
)

// Recorder persists a session log. Implemented by *store.Store.
type Recorder interface {
	WriteCommand(ctx context.Context, rec store.CommandRecord) error
	WriteSinkUpdate(ctx context.Context, rec store.SinkUpdateRecord) error
	WriteDiagnostic(ctx context.Context, rec store.DiagnosticRecord) error
}

// PropsConfigurer is implemented by host sinks that route props keys to
// channels, such as sink.Partition.
type PropsConfigurer interface {
	ConfigureProps(ui, native []string)
}

// Engine is the single-writer driver around a graph.
//
// Hosts submit commands from any goroutine; Run applies them one at a time
// on its own goroutine, so the graph is never touched concurrently. Every
// command method blocks until its command is applied and returns the
// graph's error, so configuration errors reach the caller synchronously.
//
// Thread-safety model:
//   - command methods (CreateNode, Tick, ...): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Session(), Seq(): safe from any goroutine
type Engine struct {
	graph   *graph.Graph
	host    graph.HostSink
	queue   *commandQueue
	clock   *Clock
	session string
	logger  *slog.Logger

	sessionGen SessionGenerator
	recorder   Recorder
	graphOpts  []graph.Option

	// applyCtx is the context of the command being applied. Only the Run
	// goroutine touches it.
	applyCtx context.Context
}

// Option configures an Engine.
type Option func(*Engine)

// WithSessionGenerator sets the session token source.
// Default: UUIDv7Generator.
func WithSessionGenerator(gen SessionGenerator) Option {
	return func(e *Engine) {
		e.sessionGen = gen
	}
}

// WithRecorder records every command, sink update and diagnostic.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLogger sets the logger shared by the engine and its graph.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock continues seq numbering from an existing clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithGraphOptions passes options through to graph.New. Diagnostics and
// pass-request callbacks are owned by the engine and cannot be overridden.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(e *Engine) {
		e.graphOpts = append(e.graphOpts, opts...)
	}
}

// New creates an Engine pushing sink updates to host.
func New(host graph.HostSink, opts ...Option) *Engine {
	if host == nil {
		host = graph.Discard
	}
	e := &Engine{
		host:       host,
		queue:      newCommandQueue(),
		clock:      NewClock(),
		logger:     slog.Default(),
		sessionGen: UUIDv7Generator{},
		applyCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.session = e.sessionGen.Generate()

	gopts := make([]graph.Option, 0, len(e.graphOpts)+3)
	gopts = append(gopts, graph.WithLogger(e.logger))
	gopts = append(gopts, e.graphOpts...)
	gopts = append(gopts,
		graph.WithDiagnostics(e.onDiagnostic),
		graph.WithPassRequest(e.onPassRequest),
	)
	e.graph = graph.New(recordingHost{e: e}, gopts...)
	return e
}

// Session returns this run's session token.
func (e *Engine) Session() string {
	return e.session
}

// Seq returns the last seq recorded.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

// Run starts the single-writer command loop.
// Blocks until the context is cancelled or Stop() is called and the queue
// has drained.
//
// ERROR HANDLING: a rejected command returns its error to the submitter and
// the loop continues. Recorder failures are logged and never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "session", e.session)

	for {
		if req, ok := e.queue.TryDequeue(); ok {
			e.handle(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "session", e.session)
			e.queue.Close()
			e.failPending()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so a closed queue
			// wakes us immediately; return once it is empty.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed", "session", e.session)
				return nil
			}
		}
	}
}

// Stop stops accepting commands. Run applies what is already queued and
// returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) failPending() {
	for _, req := range e.queue.Drain() {
		req.reply <- result{err: ErrStopped}
	}
}

func (e *Engine) handle(ctx context.Context, req *request) {
	if req.inspect != nil {
		req.inspect(e.graph)
		req.reply <- result{}
		return
	}
	req.reply <- e.apply(ctx, req.cmd)
}

// apply records cmd and applies it to the graph.
// CRITICAL: called only from the Run goroutine, or from Replay before any
// Run loop exists.
func (e *Engine) apply(ctx context.Context, cmd Command) result {
	e.applyCtx = ctx
	defer func() { e.applyCtx = context.Background() }()

	e.recordCommand(ctx, cmd)

	var r result
	switch cmd.Op {
	case OpCreateNode:
		r.err = e.graph.CreateNodeFromConfig(cmd.Node, cmd.Kind, cmd.Config)
	case OpRemoveNode:
		r.err = e.graph.RemoveNode(cmd.Node)
	case OpConnect:
		r.err = e.graph.Connect(cmd.Node, cmd.Child)
	case OpDisconnect:
		r.err = e.graph.Disconnect(cmd.Node, cmd.Child)
	case OpSetValue:
		r.err = e.graph.SetValue(cmd.Node, cmd.Value)
	case OpMarkUpdated:
		r.err = e.graph.MarkUpdated(cmd.Node)
	case OpConnectView:
		r.err = e.graph.ConnectToView(cmd.Node, cmd.View)
	case OpDisconnectView:
		r.err = e.graph.DisconnectFromView(cmd.Node, cmd.View)
	case OpAttachEvent:
		r.err = e.graph.AttachEvent(cmd.View, cmd.Event, cmd.Node)
	case OpDetachEvent:
		r.err = e.graph.DetachEvent(cmd.View, cmd.Event, cmd.Node)
	case OpDispatchEvent:
		r.handled, r.err = e.graph.DispatchEvent(cmd.View, cmd.Event, cmd.Payload)
	case OpConfigureProps:
		if pc, ok := e.host.(PropsConfigurer); ok {
			pc.ConfigureProps(cmd.UI, cmd.Native)
		}
	case OpTick:
		e.graph.AdvanceFrame(cmd.FrameTimeMs)
		r.report, r.err = e.graph.Tick()
	default:
		r.err = &CommandError{Op: cmd.Op, Message: "unknown op"}
	}

	if r.err != nil {
		e.logger.Debug("command rejected", "op", string(cmd.Op), "node_id", cmd.Node, "error", r.err)
	}
	return r
}

func (e *Engine) recordCommand(ctx context.Context, cmd Command) {
	if e.recorder == nil {
		return
	}
	rec := store.CommandRecord{
		SessionID: e.session,
		Seq:       e.clock.Next(),
		Op:        string(cmd.Op),
		Args:      cmd.Args(),
	}
	if err := e.recorder.WriteCommand(ctx, rec); err != nil {
		e.logger.Error("record command failed", "op", rec.Op, "seq", rec.Seq, "error", err)
	}
}

func (e *Engine) onDiagnostic(d graph.Diagnostic) {
	if e.recorder == nil {
		return
	}
	rec := store.DiagnosticRecord{
		SessionID: e.session,
		Seq:       e.clock.Next(),
		LoopID:    d.LoopID,
		NodeID:    d.NodeID,
		Code:      string(d.Code),
		Message:   d.Message,
	}
	if err := e.recorder.WriteDiagnostic(e.applyCtx, rec); err != nil {
		e.logger.Error("record diagnostic failed", "seq", rec.Seq, "error", err)
	}
}

func (e *Engine) onPassRequest() {
	e.logger.Debug("pass requested", "loop_id", e.graph.LoopID())
}

// recordingHost records each sink update, then forwards it to the host.
type recordingHost struct {
	e *Engine
}

func (h recordingHost) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	e := h.e
	if e.recorder != nil {
		rec := store.SinkUpdateRecord{
			SessionID: e.session,
			Seq:       e.clock.Next(),
			LoopID:    e.graph.LoopID(),
			View:      view,
			Props:     props,
		}
		if err := e.recorder.WriteSinkUpdate(e.applyCtx, rec); err != nil {
			e.logger.Error("record sink update failed", "view", int64(view), "seq", rec.Seq, "error", err)
		}
	}
	return e.host.ApplyUpdate(view, props)
}

// submit enqueues cmd and waits for the Run loop to apply it.
//
// If ctx ends first the command may still be applied later; only the wait
// is abandoned.
func (e *Engine) submit(ctx context.Context, cmd Command) (result, error) {
	req := &request{cmd: cmd, reply: make(chan result, 1)}
	if !e.queue.Enqueue(req) {
		return result{}, ErrStopped
	}
	select {
	case <-ctx.Done():
		return result{}, ctx.Err()
	case r := <-req.reply:
		return r, r.err
	}
}

func (e *Engine) exec(ctx context.Context, cmd Command) error {
	_, err := e.submit(ctx, cmd)
	return err
}

// Inspect runs fn on the Run goroutine between commands. fn must not keep
// the graph or call back into the engine.
func (e *Engine) Inspect(ctx context.Context, fn func(g *graph.Graph)) error {
	req := &request{inspect: fn, reply: make(chan result, 1)}
	if !e.queue.Enqueue(req) {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-req.reply:
		return r.err
	}
}

// CreateNode registers a node from a typed spec.
func (e *Engine) CreateNode(ctx context.Context, id ir.NodeID, spec ir.Spec) error {
	if spec == nil {
		return e.CreateNodeFromConfig(ctx, id, "", nil)
	}
	return e.CreateNodeFromConfig(ctx, id, spec.Kind(), ir.EncodeSpec(spec))
}

// CreateNodeFromConfig registers a node from a kind and a raw config bundle.
func (e *Engine) CreateNodeFromConfig(ctx context.Context, id ir.NodeID, kind ir.Kind, cfg ir.Bundle) error {
	return e.exec(ctx, Command{Op: OpCreateNode, Node: id, Kind: kind, Config: cfg})
}

// RemoveNode unregisters a node.
func (e *Engine) RemoveNode(ctx context.Context, id ir.NodeID) error {
	return e.exec(ctx, Command{Op: OpRemoveNode, Node: id})
}

// Connect adds the edge parent -> child.
func (e *Engine) Connect(ctx context.Context, parent, child ir.NodeID) error {
	return e.exec(ctx, Command{Op: OpConnect, Node: parent, Child: child})
}

// Disconnect removes the edge parent -> child.
func (e *Engine) Disconnect(ctx context.Context, parent, child ir.NodeID) error {
	return e.exec(ctx, Command{Op: OpDisconnect, Node: parent, Child: child})
}

// SetValue writes a Value node without marking it.
func (e *Engine) SetValue(ctx context.Context, id ir.NodeID, v ir.Value) error {
	return e.exec(ctx, Command{Op: OpSetValue, Node: id, Value: v})
}

// MarkUpdated adds id to the dirty set.
func (e *Engine) MarkUpdated(ctx context.Context, id ir.NodeID) error {
	return e.exec(ctx, Command{Op: OpMarkUpdated, Node: id})
}

// ConnectToView makes a Props node push to view.
func (e *Engine) ConnectToView(ctx context.Context, id ir.NodeID, view ir.ViewTag) error {
	return e.exec(ctx, Command{Op: OpConnectView, Node: id, View: view})
}

// DisconnectFromView stops a Props node pushing to view.
func (e *Engine) DisconnectFromView(ctx context.Context, id ir.NodeID, view ir.ViewTag) error {
	return e.exec(ctx, Command{Op: OpDisconnectView, Node: id, View: view})
}

// AttachEvent routes (view, name) to an Event node.
func (e *Engine) AttachEvent(ctx context.Context, view ir.ViewTag, name string, id ir.NodeID) error {
	return e.exec(ctx, Command{Op: OpAttachEvent, View: view, Event: name, Node: id})
}

// DetachEvent removes the route for (view, name).
func (e *Engine) DetachEvent(ctx context.Context, view ir.ViewTag, name string, id ir.NodeID) error {
	return e.exec(ctx, Command{Op: OpDetachEvent, View: view, Event: name, Node: id})
}

// DispatchEvent delivers a host event. It reports whether a node handled it.
func (e *Engine) DispatchEvent(ctx context.Context, view ir.ViewTag, name string, payload ir.Bundle) (bool, error) {
	r, err := e.submit(ctx, Command{Op: OpDispatchEvent, View: view, Event: name, Payload: payload})
	return r.handled, err
}

// ConfigureProps sets the ui and native key lists on the host sink when it
// routes props by channel. Other hosts ignore it.
func (e *Engine) ConfigureProps(ctx context.Context, ui, native []string) error {
	return e.exec(ctx, Command{Op: OpConfigureProps, UI: ui, Native: native})
}

// Tick advances the frame time and runs one pass if the graph is
// Pass-Pending.
func (e *Engine) Tick(ctx context.Context, frameTimeMs float64) (graph.PassReport, error) {
	r, err := e.submit(ctx, Command{Op: OpTick, FrameTimeMs: frameTimeMs})
	return r.report, err
}

// Value reads a node's current value. Reads are not recorded.
func (e *Engine) Value(ctx context.Context, id ir.NodeID) (ir.Value, error) {
	var v ir.Value
	var verr error
	if err := e.Inspect(ctx, func(g *graph.Graph) { v, verr = g.Value(id) }); err != nil {
		return nil, err
	}
	return v, verr
}

// Load submits every node, edge, view binding, event binding and props
// configuration in def as commands, stopping at the first error.
func (e *Engine) Load(ctx context.Context, def *ir.GraphDef) error {
	for _, n := range def.Nodes {
		if err := e.CreateNode(ctx, n.ID, n.Spec); err != nil {
			return fmt.Errorf("node %q: %w", n.Label, err)
		}
	}
	for _, edge := range def.Edges {
		if err := e.Connect(ctx, edge.Parent, edge.Child); err != nil {
			return fmt.Errorf("edge %d -> %d: %w", edge.Parent, edge.Child, err)
		}
	}
	for _, v := range def.Views {
		if err := e.ConnectToView(ctx, v.Node, v.View); err != nil {
			return fmt.Errorf("view %d: %w", v.View, err)
		}
	}
	for _, ev := range def.Events {
		if err := e.AttachEvent(ctx, ev.View, ev.EventName, ev.Node); err != nil {
			return fmt.Errorf("event %d/%s: %w", ev.View, ev.EventName, err)
		}
	}
	if len(def.Props.UI) > 0 || len(def.Props.Native) > 0 {
		if err := e.ConfigureProps(ctx, def.Props.UI, def.Props.Native); err != nil {
			return fmt.Errorf("props: %w", err)
		}
	}
	return nil
}
