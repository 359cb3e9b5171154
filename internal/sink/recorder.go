package sink

import (
	"sync"

	"github.com/roach88/animgraph/internal/ir"
)

// Update is one recorded host sink call.
type Update struct {
	Seq   int64
	View  ir.ViewTag
	Props ir.Bundle
}

// Recorder is an in-memory HostSink. It is safe for concurrent use so tests
// can inspect it while an engine goroutine writes.
type Recorder struct {
	mu      sync.Mutex
	updates []Update
	seq     int64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ApplyUpdate records the update.
func (r *Recorder) ApplyUpdate(view ir.ViewTag, props ir.Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.updates = append(r.updates, Update{Seq: r.seq, View: view, Props: props})
	return nil
}

// Updates returns a copy of every recorded update in order.
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, len(r.updates))
	copy(out, r.updates)
	return out
}

// Last returns the most recent bundle pushed to view.
func (r *Recorder) Last(view ir.ViewTag) (ir.Bundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.updates) - 1; i >= 0; i-- {
		if r.updates[i].View == view {
			return r.updates[i].Props, true
		}
	}
	return nil, false
}

// Len returns the number of recorded updates.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// Reset drops every recorded update. Sequence numbers keep counting.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
}
