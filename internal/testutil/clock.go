package testutil

import "sync"

// DefaultFrameStepMs is one frame at 60fps, rounded the way hosts commonly
// report it.
const DefaultFrameStepMs = 16

// FrameClock hands out deterministic frame times for tests.
//
// Frame times start at 0 and advance by a fixed step, so the same scenario
// run twice ticks the graph with identical times. Unlike engine.FrameSource,
// FrameClock never touches the wall clock and can be reset or moved.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FrameClock struct {
	mu     sync.Mutex
	stepMs float64
	next   float64
	last   float64
	frames int
}

// NewFrameClock creates a frame clock advancing by stepMs per frame.
// A non-positive step uses DefaultFrameStepMs.
//
// The first call to Next() returns 0.
func NewFrameClock(stepMs float64) *FrameClock {
	if stepMs <= 0 {
		stepMs = DefaultFrameStepMs
	}
	return &FrameClock{stepMs: stepMs}
}

// Next returns the next frame time in milliseconds.
func (c *FrameClock) Next() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.last = t
	c.next += c.stepMs
	c.frames++
	return t
}

// Current returns the last frame time handed out, or 0 before the first
// frame.
func (c *FrameClock) Current() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Frames returns how many frames have been handed out.
func (c *FrameClock) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Seek makes the next frame fire at ms; later frames continue from there.
func (c *FrameClock) Seek(ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = ms
}

// StepMs returns the frame step.
func (c *FrameClock) StepMs() float64 {
	return c.stepMs
}

// Reset rewinds the clock. After Reset(), the next call to Next() returns 0.
func (c *FrameClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = 0
	c.last = 0
	c.frames = 0
}
