package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/animgraph/internal/ir"
	"github.com/roach88/animgraph/internal/sink"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	switch ev.Type {
	case EventCommand:
		return fmt.Sprintf("%s %s", ev.Op, formatBundle(ev.Args))
	case EventSinkUpdate:
		return fmt.Sprintf("update view=%d loop=%d %s", ev.View, ev.LoopID, formatBundle(ev.Props))
	case EventDiagnostic:
		return fmt.Sprintf("diagnostic %s node=%d loop=%d: %s", ev.Code, ev.NodeID, ev.LoopID, ev.Message)
	}
	return ev.Type
}

func formatBundle(b ir.Bundle) string {
	data, err := ir.MarshalCanonical(b)
	if err != nil {
		return fmt.Sprintf("%v", b)
	}
	return string(data)
}

func formatAny(v any) string {
	val, err := ir.FromAny(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	data, err := ir.MarshalCanonical(val)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// assertSinkUpdate checks that some update to the view carries the expected
// props (subset match), optionally in a specific loop.
func assertSinkUpdate(trace []TraceEvent, assertion Assertion) error {
	view := ir.ViewTag(*assertion.View)
	for _, ev := range trace {
		if ev.Type != EventSinkUpdate || ev.View != view {
			continue
		}
		if assertion.Loop != nil && ev.LoopID != *assertion.Loop {
			continue
		}
		if matchProps(ev.Props, assertion.Props) {
			return nil
		}
	}

	expected := fmt.Sprintf("update to view %d with props %s", view, formatAny(assertion.Props))
	if assertion.Loop != nil {
		expected += fmt.Sprintf(" in loop %d", *assertion.Loop)
	}
	return &AssertionError{
		Type:     AssertSinkUpdate,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertSinkSequence checks the values one prop key takes across the
// updates to a view. Updates without the key are skipped.
func assertSinkSequence(trace []TraceEvent, assertion Assertion) error {
	view := ir.ViewTag(*assertion.View)
	var actual ir.Array
	for _, ev := range trace {
		if ev.Type != EventSinkUpdate || ev.View != view {
			continue
		}
		if v, ok := ev.Props[assertion.Key]; ok {
			actual = append(actual, v)
		}
	}

	expectedVal, err := ir.FromAny(assertion.Values)
	if err != nil {
		return fmt.Errorf("sink_sequence: values: %w", err)
	}
	expected := expectedVal.(ir.Array)
	if len(expected) == 0 && len(actual) == 0 {
		return nil
	}
	if !ir.Equal(expected, actual) {
		return &AssertionError{
			Type:     AssertSinkSequence,
			Expected: fmt.Sprintf("view %d %q sequence %s", view, assertion.Key, formatBundle(ir.Bundle{"values": expected})),
			Actual:   fmt.Sprintf("sequence %s", formatBundle(ir.Bundle{"values": actual})),
			Trace:    trace,
		}
	}
	return nil
}

// assertSinkCount checks the exact number of sink updates.
func assertSinkCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type != EventSinkUpdate {
			continue
		}
		if assertion.View != nil && ev.View != ir.ViewTag(*assertion.View) {
			continue
		}
		count++
	}

	if count != *assertion.Count {
		target := "all views"
		if assertion.View != nil {
			target = fmt.Sprintf("view %d", *assertion.View)
		}
		return &AssertionError{
			Type:     AssertSinkCount,
			Expected: fmt.Sprintf("%d sink updates to %s", *assertion.Count, target),
			Actual:   fmt.Sprintf("%d sink updates", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertChannelUpdate checks what a host channel received after props were
// partitioned.
func assertChannelUpdate(channels map[sink.Channel][]sink.Update, assertion Assertion) error {
	view := ir.ViewTag(*assertion.View)
	updates := channels[sink.Channel(assertion.Channel)]
	for _, u := range updates {
		if u.View == view && matchProps(u.Props, assertion.Props) {
			return nil
		}
	}

	received := make([]string, len(updates))
	for i, u := range updates {
		received[i] = fmt.Sprintf("view=%d %s", u.View, formatBundle(u.Props))
	}
	return &AssertionError{
		Type:     AssertChannelUpdate,
		Expected: fmt.Sprintf("%s update to view %d with props %s", assertion.Channel, view, formatAny(assertion.Props)),
		Actual:   fmt.Sprintf("received [%s]", strings.Join(received, ", ")),
	}
}

// assertFinalValue checks a node's value after the last step.
func assertFinalValue(values map[ir.NodeID]ir.Value, assertion Assertion) error {
	id := ir.NodeID(assertion.Node)
	actual, ok := values[id]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("node %d = %s", id, formatAny(assertion.Value)),
			Actual:   "node has no value",
		}
	}

	expected, err := ir.FromAny(assertion.Value)
	if err != nil {
		return fmt.Errorf("final_value: value: %w", err)
	}
	if !ir.Equal(expected, actual) {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("node %d = %s", id, formatAny(expected)),
			Actual:   fmt.Sprintf("node %d = %s", id, formatAny(actual)),
		}
	}
	return nil
}

// assertDiagnostic checks that a diagnostic with the code was recorded,
// optionally for one node.
func assertDiagnostic(trace []TraceEvent, assertion Assertion) error {
	for _, ev := range trace {
		if ev.Type != EventDiagnostic || ev.Code != assertion.Code {
			continue
		}
		if assertion.Node != 0 && ev.NodeID != ir.NodeID(assertion.Node) {
			continue
		}
		return nil
	}

	expected := "diagnostic " + assertion.Code
	if assertion.Node != 0 {
		expected += fmt.Sprintf(" for node %d", assertion.Node)
	}
	return &AssertionError{
		Type:     AssertDiagnostic,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertNoDiagnostics(trace []TraceEvent) error {
	var found []string
	for _, ev := range trace {
		if ev.Type == EventDiagnostic {
			found = append(found, fmt.Sprintf("%s (node %d)", ev.Code, ev.NodeID))
		}
	}
	if len(found) > 0 {
		return &AssertionError{
			Type:     AssertNoDiagnostics,
			Expected: "no diagnostics",
			Actual:   strings.Join(found, ", "),
			Trace:    trace,
		}
	}
	return nil
}

// assertPassCount checks how many ticks ran a pass.
func assertPassCount(result *Result, assertion Assertion) error {
	ran := 0
	for _, p := range result.Passes {
		if p.Ran {
			ran++
		}
	}
	if ran != *assertion.Count {
		return &AssertionError{
			Type:     AssertPassCount,
			Expected: fmt.Sprintf("%d passes", *assertion.Count),
			Actual:   fmt.Sprintf("%d passes over %d ticks", ran, len(result.Passes)),
		}
	}
	return nil
}

// matchProps reports whether actual contains every expected key with an
// equal value. Extra keys in actual are OK (subset match).
func matchProps(actual ir.Bundle, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return false
		}
		wantVal, err := ir.FromAny(want)
		if err != nil || !ir.Equal(wantVal, got) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSinkUpdate:
			err = assertSinkUpdate(result.Trace, assertion)
		case AssertSinkSequence:
			err = assertSinkSequence(result.Trace, assertion)
		case AssertSinkCount:
			err = assertSinkCount(result.Trace, assertion)
		case AssertChannelUpdate:
			err = assertChannelUpdate(result.Channels, assertion)
		case AssertFinalValue:
			err = assertFinalValue(result.Values, assertion)
		case AssertDiagnostic:
			err = assertDiagnostic(result.Trace, assertion)
		case AssertNoDiagnostics:
			err = assertNoDiagnostics(result.Trace)
		case AssertPassCount:
			err = assertPassCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
