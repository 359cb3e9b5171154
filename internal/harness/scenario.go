package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario optionally loads a graph definition, drives the engine through
// a list of steps and then asserts on the recorded trace, the host channels
// and the final node values.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definition is a directory of CUE files loaded before the first step.
	// Relative paths are resolved against the scenario file location.
	Definition string `yaml:"definition,omitempty"`

	// Session is a fixed session token for deterministic golden output.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// FrameMs is the frame step used by tick steps without an explicit time.
	// If zero, defaults to 16.
	FrameMs float64 `yaml:"frame_ms,omitempty"`

	// Steps are applied to the engine in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, channels and final values.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine command. Exactly one action field is set.
type Step struct {
	Create     *CreateStep   `yaml:"create,omitempty"`
	Remove     *int64        `yaml:"remove,omitempty"`
	Connect    *EdgeStep     `yaml:"connect,omitempty"`
	Disconnect *EdgeStep     `yaml:"disconnect,omitempty"`
	Set        *SetStep      `yaml:"set,omitempty"`
	Mark       *int64        `yaml:"mark,omitempty"`
	View       *ViewStep     `yaml:"view,omitempty"`
	Unview     *ViewStep     `yaml:"unview,omitempty"`
	Attach     *EventStep    `yaml:"attach,omitempty"`
	Detach     *EventStep    `yaml:"detach,omitempty"`
	Dispatch   *DispatchStep `yaml:"dispatch,omitempty"`
	Tick       *TickStep     `yaml:"tick,omitempty"`
	Props      *PropsStep    `yaml:"props,omitempty"`

	// ExpectError is the graph error code the step must fail with
	// (e.g. "MISSING_NODE"). Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// CreateStep registers a node from a kind and a raw config.
type CreateStep struct {
	ID     int64          `yaml:"id"`
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config,omitempty"`
}

// EdgeStep names a parent -> child edge.
type EdgeStep struct {
	Parent int64 `yaml:"parent"`
	Child  int64 `yaml:"child"`
}

// SetStep writes a Value node.
type SetStep struct {
	ID    int64 `yaml:"id"`
	Value any   `yaml:"value"`
}

// ViewStep binds or unbinds a Props node and a view.
type ViewStep struct {
	ID   int64 `yaml:"id"`
	View int64 `yaml:"view"`
}

// EventStep attaches or detaches an Event node.
type EventStep struct {
	View  int64  `yaml:"view"`
	Event string `yaml:"event"`
	ID    int64  `yaml:"id"`
}

// DispatchStep delivers a host event.
type DispatchStep struct {
	View    int64          `yaml:"view"`
	Event   string         `yaml:"event"`
	Payload map[string]any `yaml:"payload,omitempty"`

	// Handled, when set, is the expected dispatch outcome.
	Handled *bool `yaml:"handled,omitempty"`
}

// TickStep advances frames. With Time set the first frame is at Time;
// later frames continue from the harness frame clock.
type TickStep struct {
	Time  *float64 `yaml:"time,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// PropsStep configures the ui and native key lists.
type PropsStep struct {
	UI     []string `yaml:"ui,omitempty"`
	Native []string `yaml:"native,omitempty"`
}

// action returns the step's action name and how many action fields are set.
func (s Step) action() (string, int) {
	name, n := "", 0
	set := func(ok bool, action string) {
		if ok {
			name = action
			n++
		}
	}
	set(s.Create != nil, "create")
	set(s.Remove != nil, "remove")
	set(s.Connect != nil, "connect")
	set(s.Disconnect != nil, "disconnect")
	set(s.Set != nil, "set")
	set(s.Mark != nil, "mark")
	set(s.View != nil, "view")
	set(s.Unview != nil, "unview")
	set(s.Attach != nil, "attach")
	set(s.Detach != nil, "detach")
	set(s.Dispatch != nil, "dispatch")
	set(s.Tick != nil, "tick")
	set(s.Props != nil, "props")
	return name, n
}

// Assertion validates trace, channels or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "sink_update": some update to View carries Props (subset match)
	// - "sink_sequence": the values of Key across updates to View
	// - "sink_count": number of sink updates, optionally for one View
	// - "channel_update": some update on Channel to View carries Props
	// - "final_value": Node evaluates to Value after the last step
	// - "diagnostic": a diagnostic with Code was recorded
	// - "no_diagnostics": no diagnostic was recorded
	// - "pass_count": number of ticks that ran a pass
	Type string `yaml:"type"`

	View    *int64         `yaml:"view,omitempty"`
	Props   map[string]any `yaml:"props,omitempty"`
	Loop    *int64         `yaml:"loop,omitempty"`
	Key     string         `yaml:"key,omitempty"`
	Values  []any          `yaml:"values,omitempty"`
	Count   *int           `yaml:"count,omitempty"`
	Channel string         `yaml:"channel,omitempty"`
	Node    int64          `yaml:"node,omitempty"`
	Value   any            `yaml:"value,omitempty"`
	Code    string         `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertSinkUpdate    = "sink_update"
	AssertSinkSequence  = "sink_sequence"
	AssertSinkCount     = "sink_count"
	AssertChannelUpdate = "channel_update"
	AssertFinalValue    = "final_value"
	AssertDiagnostic    = "diagnostic"
	AssertNoDiagnostics = "no_diagnostics"
	AssertPassCount     = "pass_count"
)

// LoadScenario reads and parses a scenario YAML file. The definition path
// is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the definition path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := parseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the definition path BEFORE validation
	if scenario.Definition != "" && !filepath.IsAbs(scenario.Definition) && basePath != "" {
		scenario.Definition = filepath.Join(basePath, scenario.Definition)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func parseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 && s.Definition == "" {
		return fmt.Errorf("steps list is required when no definition is given")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.FrameMs < 0 {
		return fmt.Errorf("frame_ms must be non-negative")
	}

	if s.Definition != "" {
		info, err := os.Stat(s.Definition)
		if err != nil {
			return fmt.Errorf("definition not found: %s", s.Definition)
		}
		if !info.IsDir() {
			return fmt.Errorf("definition is not a directory: %s", s.Definition)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	name, n := s.action()
	switch {
	case n == 0:
		return fmt.Errorf("steps[%d]: an action is required", index)
	case n > 1:
		return fmt.Errorf("steps[%d]: exactly one action is allowed, found %d", index, n)
	}

	switch name {
	case "create":
		if s.Create.Kind == "" {
			return fmt.Errorf("steps[%d]: create.kind is required", index)
		}
	case "attach", "detach":
		ev := s.Attach
		if ev == nil {
			ev = s.Detach
		}
		if ev.Event == "" {
			return fmt.Errorf("steps[%d]: %s.event is required", index, name)
		}
	case "dispatch":
		if s.Dispatch.Event == "" {
			return fmt.Errorf("steps[%d]: dispatch.event is required", index)
		}
	case "tick":
		if s.Tick.Count < 0 {
			return fmt.Errorf("steps[%d]: tick.count must be non-negative", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSinkUpdate:
		if a.View == nil {
			return fmt.Errorf("assertions[%d]: view is required for sink_update", index)
		}
		if len(a.Props) == 0 {
			return fmt.Errorf("assertions[%d]: props is required for sink_update", index)
		}
	case AssertSinkSequence:
		if a.View == nil || a.Key == "" {
			return fmt.Errorf("assertions[%d]: view and key are required for sink_sequence", index)
		}
	case AssertSinkCount, AssertPassCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertChannelUpdate:
		if a.Channel == "" || a.View == nil {
			return fmt.Errorf("assertions[%d]: channel and view are required for channel_update", index)
		}
	case AssertFinalValue:
		if a.Node == 0 {
			return fmt.Errorf("assertions[%d]: node is required for final_value", index)
		}
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
	case AssertNoDiagnostics:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
