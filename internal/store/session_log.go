package store

import (
	"context"
	"fmt"
)

// SessionLog is everything recorded for one session, each stream ordered
// by seq.
type SessionLog struct {
	Session     Session
	Commands    []CommandRecord
	SinkUpdates []SinkUpdateRecord
	Diagnostics []DiagnosticRecord

	// LastSeq is the highest seq across all streams. It can exceed
	// Session.LastSeq when the session was never closed.
	LastSeq int64
}

// ReadSessionLog reads a session and all of its streams.
func (s *Store) ReadSessionLog(ctx context.Context, sessionID string) (SessionLog, error) {
	var log SessionLog

	sess, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return log, err
	}
	log.Session = sess
	log.LastSeq = sess.LastSeq

	if log.Commands, err = s.ReadCommands(ctx, sessionID); err != nil {
		return log, fmt.Errorf("read session log: %w", err)
	}
	if log.SinkUpdates, err = s.ReadSinkUpdates(ctx, sessionID); err != nil {
		return log, fmt.Errorf("read session log: %w", err)
	}
	if log.Diagnostics, err = s.ReadDiagnostics(ctx, sessionID); err != nil {
		return log, fmt.Errorf("read session log: %w", err)
	}

	for _, c := range log.Commands {
		log.LastSeq = max(log.LastSeq, c.Seq)
	}
	for _, u := range log.SinkUpdates {
		log.LastSeq = max(log.LastSeq, u.Seq)
	}
	for _, d := range log.Diagnostics {
		log.LastSeq = max(log.LastSeq, d.Seq)
	}
	return log, nil
}
