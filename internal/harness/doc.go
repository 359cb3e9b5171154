// Package harness runs conformance scenarios against the animgraph engine.
//
// A scenario is a YAML file naming an optional CUE graph definition, a list
// of steps (engine commands such as create, connect, set, dispatch and tick)
// and assertions over the result. Each run:
//
//  1. opens a fresh in-memory store
//  2. loads and validates the definition with the compiler
//  3. drives a real engine with a fixed session token and a deterministic
//     frame clock, recording every command, sink update and diagnostic
//  4. reads the session log back as the trace
//  5. replays the log on a fresh engine and requires an identical sink
//     stream
//  6. evaluates the assertions
//
// Host updates pass through a sink.Partition, so assertions can check both
// the recorded stream and what each host channel (ui, native, js) received.
//
// Traces are compared against golden files with goldie:
//
//	go test ./internal/harness -update
package harness
