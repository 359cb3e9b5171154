package sink

import (
	"errors"
	"log/slog"

	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
)

// Multi forwards every update to each sink in order. All sinks are called
// even when an earlier one fails; the errors are joined.
type Multi []graph.HostSink

// ApplyUpdate implements graph.HostSink.
func (m Multi) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	var errs []error
	for _, s := range m {
		if err := s.ApplyUpdate(view, props); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logging writes each update to a logger at Debug level.
type Logging struct {
	Logger *slog.Logger
}

// ApplyUpdate implements graph.HostSink.
func (l Logging) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	data, err := ir.MarshalCanonical(props)
	if err != nil {
		return err
	}
	logger.Debug("sink update", "view", int64(view), "props", string(data))
	return nil
}
