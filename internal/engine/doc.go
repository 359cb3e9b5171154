// Package engine drives a graph from a host.
//
// The engine owns one graph.Graph and is the only goroutine that touches it.
//
// ARCHITECTURE:
//
// Single-Writer Command Loop:
// Hosts submit commands (create, connect, set, mark, dispatch, tick ...)
// from any goroutine. Commands go onto a FIFO queue and Engine.Run applies
// them one at a time. This ensures:
//   - The graph's single-threaded model holds without locks
//   - Commands apply in submission order
//   - A recorded session replays to the same sink updates
//
// Command Flow:
//  1. A command method enqueues a request and blocks on its reply channel
//  2. Run dequeues it, records it (when a Recorder is configured), applies
//     it to the graph and replies with the result
//  3. Tick advances the frame time and runs one pass if the graph is
//     Pass-Pending; sink updates and diagnostics produced by the pass are
//     recorded as they happen
//
// Logical Clock:
// Every recorded entry is stamped with a seq from Clock.Next(). The seq
// orders a session log; wall-clock timestamps are never used for ordering.
//
// Frame times are supplied by the caller (FrameSource computes them from the
// frame index), so a session is reproducible from its command log alone.
package engine
