package engine

import (
	"context"
	"fmt"

	"github.com/roach88/animgraph/internal/graph"
	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/store"
)

// Mismatch is one position where the replayed stream diverges.
type Mismatch struct {
	// Index is the position in the sink-update stream.
	Index int

	// Want is the recorded update; nil when replay produced extra updates.
	Want *store.SinkUpdateRecord

	// Got is the replayed update; nil when replay produced fewer updates.
	Got *store.SinkUpdateRecord
}

// String describes the mismatch on one line.
func (m Mismatch) String() string {
	switch {
	case m.Want == nil:
		return fmt.Sprintf("#%d: unexpected update view=%d loop=%d", m.Index, m.Got.View, m.Got.LoopID)
	case m.Got == nil:
		return fmt.Sprintf("#%d: missing update view=%d loop=%d", m.Index, m.Want.View, m.Want.LoopID)
	default:
		return fmt.Sprintf("#%d: want view=%d loop=%d hash=%.12s, got view=%d loop=%d hash=%.12s",
			m.Index,
			m.Want.View, m.Want.LoopID, m.Want.PropsHash,
			m.Got.View, m.Got.LoopID, m.Got.PropsHash)
	}
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	SessionID  string
	Commands   int
	Recorded   int
	Replayed   int
	Mismatches []Mismatch

	// Updates is the replayed stream.
	Updates []store.SinkUpdateRecord
}

// OK reports whether the replayed stream equals the recorded one.
func (r ReplayResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-executes a session's recorded commands on a fresh graph and
// compares the sink updates it produces with the recorded ones.
//
// Replay is structural: commands go through the same apply path as a live
// run, in seq order, on the calling goroutine. Frame times come from the
// recorded tick commands, so a deterministic graph reproduces its stream
// exactly. Errors returned by individual commands are expected to recur and
// are not mismatches.
//
// Two updates match when their loop ID, view and payload hash are equal.
// Options configure the fresh engine; WithRecorder is ignored.
func Replay(ctx context.Context, log store.SessionLog, opts ...Option) (ReplayResult, error) {
	res := ReplayResult{SessionID: log.Session.ID}

	var updates []store.SinkUpdateRecord
	var e *Engine
	capture := graph.HostSinkFunc(func(view ir.ViewTag, props ir.Bundle) error {
		hash, err := ir.PayloadHash(props)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		updates = append(updates, store.SinkUpdateRecord{
			SessionID: log.Session.ID,
			LoopID:    e.graph.LoopID(),
			View:      view,
			Props:     props,
			PropsHash: hash,
		})
		return nil
	})

	opts = append(opts,
		WithSessionGenerator(NewFixedGenerator(log.Session.ID)),
		WithRecorder(nil),
	)
	e = New(capture, opts...)

	for _, rec := range log.Commands {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		cmd, err := DecodeCommand(rec.Op, rec.Args)
		if err != nil {
			return res, fmt.Errorf("replay seq=%d: %w", rec.Seq, err)
		}
		e.apply(ctx, cmd)
		res.Commands++
	}

	res.Updates = updates
	res.Recorded = len(log.SinkUpdates)
	res.Replayed = len(updates)
	res.Mismatches = compareUpdates(log.SinkUpdates, updates)
	return res, nil
}

func compareUpdates(want, got []store.SinkUpdateRecord) []Mismatch {
	var out []Mismatch
	for i := 0; i < max(len(want), len(got)); i++ {
		m := Mismatch{Index: i}
		if i < len(want) {
			m.Want = &want[i]
		}
		if i < len(got) {
			m.Got = &got[i]
		}
		if m.Want != nil && m.Got != nil &&
			m.Want.LoopID == m.Got.LoopID &&
			m.Want.View == m.Got.View &&
			m.Want.PropsHash == m.Got.PropsHash {
			continue
		}
		out = append(out, m)
	}
	return out
}
