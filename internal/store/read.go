package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/animgraph/internal/ir"
)

// ErrSessionNotFound is returned when a session ID has no record.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession retrieves a single session by ID.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, definition_hash, definition_version, engine_version, source, definition, last_seq, closed
		FROM sessions
		WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %s: %w", id, ErrSessionNotFound)
	}
	return sess, err
}

// LatestSession returns the most recently written session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, definition_hash, definition_version, engine_version, source, definition, last_seq, closed
		FROM sessions
		ORDER BY rowid DESC
		LIMIT 1
	`)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("latest session: %w", ErrSessionNotFound)
	}
	return sess, err
}

// ListSessions returns all sessions in the order they were written.
// Returns an empty slice (not nil) when the store holds no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, definition_hash, definition_version, engine_version, source, definition, last_seq, closed
		FROM sessions
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadCommands returns a session's commands ordered by seq.
func (s *Store) ReadCommands(ctx context.Context, sessionID string) ([]CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, op, args
		FROM commands
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	cmds := []CommandRecord{}
	for rows.Next() {
		var rec CommandRecord
		var argsJSON string
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.Op, &argsJSON); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if rec.Args, err = unmarshalBundle(argsJSON); err != nil {
			return nil, fmt.Errorf("command seq=%d: %w", rec.Seq, err)
		}
		cmds = append(cmds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return cmds, nil
}

// ReadSinkUpdates returns a session's sink updates ordered by seq.
func (s *Store) ReadSinkUpdates(ctx context.Context, sessionID string) ([]SinkUpdateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, loop_id, view_tag, props, props_hash
		FROM sink_updates
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query sink updates: %w", err)
	}
	return scanSinkUpdates(rows)
}

// ReadSinkUpdatesForView returns the updates pushed to one view, ordered
// by seq.
func (s *Store) ReadSinkUpdatesForView(ctx context.Context, sessionID string, view ir.ViewTag) ([]SinkUpdateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, loop_id, view_tag, props, props_hash
		FROM sink_updates
		WHERE session_id = ? AND view_tag = ?
		ORDER BY seq ASC
	`, sessionID, int64(view))
	if err != nil {
		return nil, fmt.Errorf("query sink updates: %w", err)
	}
	return scanSinkUpdates(rows)
}

// ReadDiagnostics returns a session's diagnostics ordered by seq.
func (s *Store) ReadDiagnostics(ctx context.Context, sessionID string) ([]DiagnosticRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, loop_id, node_id, code, message
		FROM diagnostics
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []DiagnosticRecord{}
	for rows.Next() {
		var rec DiagnosticRecord
		var nodeID int64
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.LoopID, &nodeID, &rec.Code, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		rec.NodeID = ir.NodeID(nodeID)
		diags = append(diags, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	var defJSON string
	var closed int
	if err := row.Scan(
		&sess.ID, &sess.DefinitionHash, &sess.DefinitionVersion, &sess.EngineVersion,
		&sess.Source, &defJSON, &sess.LastSeq, &closed,
	); err != nil {
		return Session{}, err
	}
	def, err := unmarshalBundle(defJSON)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Definition = def
	sess.Closed = closed != 0
	return sess, nil
}

func scanSinkUpdates(rows *sql.Rows) ([]SinkUpdateRecord, error) {
	defer rows.Close()

	updates := []SinkUpdateRecord{}
	for rows.Next() {
		var rec SinkUpdateRecord
		var view int64
		var propsJSON string
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.LoopID, &view, &propsJSON, &rec.PropsHash); err != nil {
			return nil, fmt.Errorf("scan sink update: %w", err)
		}
		props, err := unmarshalBundle(propsJSON)
		if err != nil {
			return nil, fmt.Errorf("sink update seq=%d: %w", rec.Seq, err)
		}
		rec.View = ir.ViewTag(view)
		rec.Props = props
		updates = append(updates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sink updates: %w", err)
	}
	return updates, nil
}
