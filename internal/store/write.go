package store

import (
	"context"
	"fmt"

	"github.com/roach88/animgraph/internal/ir"
)

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting a session is
// silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	defJSON, err := marshalBundle(sess.Definition)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, definition_hash, definition_version, engine_version, source, definition)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.DefinitionHash,
		sess.DefinitionVersion,
		sess.EngineVersion,
		sess.Source,
		defJSON,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// CloseSession marks a session closed and records the last seq it used.
func (s *Store) CloseSession(ctx context.Context, id string, lastSeq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET closed = 1, last_seq = ? WHERE id = ?
	`, lastSeq, id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("close session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// WriteCommand appends a command to a session's log.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteCommand(ctx context.Context, rec CommandRecord) error {
	argsJSON, err := marshalBundle(rec.Args)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (session_id, seq, op, args)
		VALUES (?, ?, ?, ?)
	`, rec.SessionID, rec.Seq, rec.Op, argsJSON)
	if err != nil {
		return fmt.Errorf("write command seq=%d: %w", rec.Seq, err)
	}
	return nil
}

// WriteSinkUpdate appends a host sink call to a session's log. The props
// hash is computed when the record does not carry one.
func (s *Store) WriteSinkUpdate(ctx context.Context, rec SinkUpdateRecord) error {
	propsJSON, err := marshalBundle(rec.Props)
	if err != nil {
		return fmt.Errorf("write sink update: %w", err)
	}

	hash := rec.PropsHash
	if hash == "" {
		props := rec.Props
		if props == nil {
			props = ir.Bundle{}
		}
		hash, err = ir.PayloadHash(props)
		if err != nil {
			return fmt.Errorf("write sink update: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sink_updates (session_id, seq, loop_id, view_tag, props, props_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Seq, rec.LoopID, int64(rec.View), propsJSON, hash)
	if err != nil {
		return fmt.Errorf("write sink update seq=%d: %w", rec.Seq, err)
	}
	return nil
}

// WriteDiagnostic appends a diagnostic to a session's log.
func (s *Store) WriteDiagnostic(ctx context.Context, rec DiagnosticRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (session_id, seq, loop_id, node_id, code, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Seq, rec.LoopID, int64(rec.NodeID), rec.Code, rec.Message)
	if err != nil {
		return fmt.Errorf("write diagnostic seq=%d: %w", rec.Seq, err)
	}
	return nil
}
