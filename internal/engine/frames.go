package engine

import (
	"context"
	"time"

	"github.com/roach88/animgraph/internal/graph"
)

// DefaultFrameInterval is one frame at 60fps.
const DefaultFrameInterval = time.Second / 60

// FrameSource drives Engine.Tick at a fixed rate.
//
// Frame times are derived from the frame index, not the wall clock: frame n
// has time n*Interval in milliseconds. The ticker only paces delivery, so a
// slow host drops no frames and the recorded frame times are reproducible.
type FrameSource struct {
	// Interval between frames. Zero means DefaultFrameInterval.
	Interval time.Duration

	// Frames is the number of frames to deliver. Zero means run until the
	// context ends.
	Frames int

	// OnPass, when set, is called with the report of every tick that ran
	// a pass.
	OnPass func(graph.PassReport)
}

// FrameTime returns the frame time in milliseconds for a frame index.
func (f FrameSource) FrameTime(frame int) float64 {
	return float64(frame) * float64(f.interval()) / float64(time.Millisecond)
}

func (f FrameSource) interval() time.Duration {
	if f.Interval <= 0 {
		return DefaultFrameInterval
	}
	return f.Interval
}

// Drive ticks e once per frame. The first frame is delivered immediately.
// Returns nil after the last frame, or the context's error.
func (f FrameSource) Drive(ctx context.Context, e *Engine) error {
	ticker := time.NewTicker(f.interval())
	defer ticker.Stop()

	for frame := 0; f.Frames == 0 || frame < f.Frames; frame++ {
		if frame > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		report, err := e.Tick(ctx, f.FrameTime(frame))
		if err != nil {
			return err
		}
		if report.Ran && f.OnPass != nil {
			f.OnPass(report)
		}
	}
	return nil
}
