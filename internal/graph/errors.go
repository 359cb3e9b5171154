package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/animgraph/internal/ir"
)

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeUnknownKind indicates a create call named no known node kind.
	ErrCodeUnknownKind ErrorCode = "UNKNOWN_KIND"

	// ErrCodeInvalidConfig indicates malformed kind-specific configuration.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeDuplicateID indicates a create call reused a live node ID.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeMissingNode indicates a reference to a node that is not registered.
	ErrCodeMissingNode ErrorCode = "MISSING_NODE"

	// ErrCodeKindMismatch indicates an operation applied to the wrong node kind.
	ErrCodeKindMismatch ErrorCode = "KIND_MISMATCH"

	// ErrCodeEvalCycle indicates a node read itself while evaluating.
	ErrCodeEvalCycle ErrorCode = "EVAL_CYCLE"

	// ErrCodeDepthExceeded indicates evaluation recursed past the max depth.
	ErrCodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeReentrantPass indicates RunUpdates was called during a pass.
	ErrCodeReentrantPass ErrorCode = "REENTRANT_PASS"

	// ErrCodeRegistryCorrupt indicates the registry broke an internal invariant.
	ErrCodeRegistryCorrupt ErrorCode = "REGISTRY_CORRUPT"

	// ErrCodeSinkFailed indicates the host sink rejected an update.
	ErrCodeSinkFailed ErrorCode = "SINK_FAILED"

	// ErrCodeEventConflict indicates an event slot already has a handler.
	ErrCodeEventConflict ErrorCode = "EVENT_CONFLICT"
)

// Error is the structured error returned by every graph operation and
// carried by every diagnostic.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// NodeID is the node the error is attributed to.
	NodeID ir.NodeID

	// RefID is the referenced node for reference errors, zero otherwise.
	RefID ir.NodeID

	// LoopID is the clock value when the error occurred.
	LoopID int64

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (node=%d", e.Code, e.Message, e.NodeID)
	if e.RefID != 0 {
		msg += fmt.Sprintf(", ref=%d", e.RefID)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err, or "" if err is not a graph error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsMissingNode reports whether err is a reference to an unregistered node.
func IsMissingNode(err error) bool {
	return CodeOf(err) == ErrCodeMissingNode
}

// IsConfigError reports whether err rejected a create call.
func IsConfigError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeUnknownKind, ErrCodeInvalidConfig, ErrCodeDuplicateID:
		return true
	}
	return false
}

// IsReentrant reports whether err came from a nested RunUpdates call.
func IsReentrant(err error) bool {
	return CodeOf(err) == ErrCodeReentrantPass
}

func newMissingNode(id ir.NodeID) *Error {
	return &Error{
		Code:    ErrCodeMissingNode,
		Message: "node is not registered",
		NodeID:  id,
	}
}

func newMissingRef(from, ref ir.NodeID) *Error {
	return &Error{
		Code:    ErrCodeMissingNode,
		Message: fmt.Sprintf("node %d references unregistered node %d", from, ref),
		NodeID:  from,
		RefID:   ref,
	}
}

func newKindMismatch(id ir.NodeID, got ir.Kind, want ...ir.Kind) *Error {
	return &Error{
		Code:    ErrCodeKindMismatch,
		Message: fmt.Sprintf("node is %s, want %v", got, want),
		NodeID:  id,
	}
}
