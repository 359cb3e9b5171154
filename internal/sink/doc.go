// Package sink provides graph.HostSink implementations.
//
// Recorder keeps every update in memory for tests and the harness.
// Partition routes prop keys to UI, native and JS channels the way a host
// framework splits layout-affecting props from ones it can apply directly.
// Multi fans one update out to several sinks. Logging writes updates to slog.
package sink
