package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/animgraph/internal/ir"
)

// Compile and validation error codes.
const (
	// Load errors (E001-E099)
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build or evaluation failed
	ErrCodeIncomplete  = "E007" // value is not concrete

	// Node errors (E100-E199)
	ErrCodeNoNodes       = "E100" // definition has no nodes
	ErrCodeMissingID     = "E101" // node id is required
	ErrCodeInvalidID     = "E102" // node id is not an integer
	ErrCodeMissingKind   = "E103" // node kind is required
	ErrCodeUnknownKind   = "E104" // kind names no node variant
	ErrCodeInvalidConfig = "E105" // kind-specific configuration is malformed
	ErrCodeDuplicateID   = "E106" // two nodes share an id

	// Edge, view and event errors (E200-E299)
	ErrCodeUndefinedRef   = "E201" // reference to an undefined node
	ErrCodeTargetKind     = "E202" // referenced node has the wrong kind
	ErrCodeInvalidEdge    = "E203" // malformed or dangling edge
	ErrCodeViewNotProps   = "E204" // view bound to a non-props node
	ErrCodeEventNotEvent  = "E205" // event bound to a non-event node
	ErrCodeEventConflict  = "E206" // two handlers for one view event
	ErrCodeInvalidBinding = "E207" // malformed view or event binding
	ErrCodeInvalidProps   = "E208" // malformed props routing
)

// ValidationError is a semantic error in a compiled definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled definition and returns every error found.
func Validate(def *ir.GraphDef) []ValidationError {
	if def == nil {
		return []ValidationError{{Field: "definition", Message: "definition is nil", Code: ErrCodeGeneric}}
	}

	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	kinds := make(map[ir.NodeID]ir.Kind, len(def.Nodes))
	for _, n := range def.Nodes {
		field := nodeField(n)
		if n.Spec == nil {
			add(ErrCodeUnknownKind, field, "node has no spec")
			continue
		}
		if _, dup := kinds[n.ID]; dup {
			add(ErrCodeDuplicateID, field+".id", "duplicate node id %d", n.ID)
			continue
		}
		kinds[n.ID] = n.Spec.Kind()

		if err := ir.ValidateSpec(n.Spec); err != nil {
			var se *ir.SpecError
			if errors.As(err, &se) && se.Field != "" {
				add(ErrCodeInvalidConfig, field+"."+se.Field, "%s", se.Message)
			} else {
				add(ErrCodeInvalidConfig, field, "%v", err)
			}
		}
	}

	for _, n := range def.Nodes {
		if n.Spec == nil {
			continue
		}
		field := nodeField(n)
		for _, ref := range n.Spec.Refs() {
			if _, ok := kinds[ref]; !ok {
				add(ErrCodeUndefinedRef, field, "references undefined node %d", ref)
			}
		}
		if c, ok := n.Spec.(ir.ClockTestSpec); ok {
			if k, ok := kinds[c.Clock]; ok && k != ir.KindClock {
				add(ErrCodeTargetKind, field+".clock", "node %d is %s, want %s", c.Clock, k, ir.KindClock)
			}
		}
		if c, ok := n.Spec.(ir.CallFuncSpec); ok {
			if k, ok := kinds[c.What]; ok && k != ir.KindFunction {
				add(ErrCodeTargetKind, field+".what", "node %d is %s, want %s", c.What, k, ir.KindFunction)
			}
		}

		want := ir.WriteKinds(n.Spec)
		for _, target := range ir.Writes(n.Spec) {
			k, ok := kinds[target]
			switch {
			case !ok:
				add(ErrCodeUndefinedRef, field, "writes undefined node %d", target)
			case !slices.Contains(want, k):
				add(ErrCodeTargetKind, field, "writes node %d of kind %s, want %s", target, k, joinKinds(want))
			}
		}
	}

	for i, e := range def.Edges {
		for _, id := range []ir.NodeID{e.Parent, e.Child} {
			if _, ok := kinds[id]; !ok {
				add(ErrCodeInvalidEdge, fmt.Sprintf("edge[%d]", i), "undefined node %d", id)
			}
		}
	}

	for i, v := range def.Views {
		field := fmt.Sprintf("view[%d]", i)
		k, ok := kinds[v.Node]
		switch {
		case !ok:
			add(ErrCodeUndefinedRef, field, "undefined node %d", v.Node)
		case k != ir.KindProps:
			add(ErrCodeViewNotProps, field, "node %d is %s; only props nodes connect to views", v.Node, k)
		}
	}

	type slot struct {
		view ir.ViewTag
		name string
	}
	handlers := make(map[slot]ir.NodeID)
	for i, e := range def.Events {
		field := fmt.Sprintf("event[%d]", i)
		k, ok := kinds[e.Node]
		switch {
		case !ok:
			add(ErrCodeUndefinedRef, field, "undefined node %d", e.Node)
		case k != ir.KindEvent:
			add(ErrCodeEventNotEvent, field, "node %d is %s; only event nodes handle events", e.Node, k)
		}
		key := slot{view: e.View, name: e.EventName}
		if prev, dup := handlers[key]; dup {
			add(ErrCodeEventConflict, field, "event %d/%s already handled by node %d", e.View, e.EventName, prev)
			continue
		}
		handlers[key] = e.Node
	}

	for _, name := range def.Props.UI {
		if slices.Contains(def.Props.Native, name) {
			add(ErrCodeInvalidProps, "props", "prop %q is listed as both ui and native", name)
		}
	}

	return errs
}

func nodeField(n ir.NodeDef) string {
	if n.Label != "" {
		return "node." + n.Label
	}
	return fmt.Sprintf("node.#%d", n.ID)
}

func joinKinds(kinds []ir.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, " or ")
}
