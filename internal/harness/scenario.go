package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one scripted store run: an optional watched query,
// a sequence of mutation steps, and assertions on the captured trace.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query optionally defines a live query watched during the run.
	// Same shape as a standalone query definition file (kind, where,
	// sort).
	Query *yaml.Node `yaml:"query,omitempty"`

	// Steps contains the mutations to execute, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the captured trace and final query results.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one mutation. Exactly one of the operation fields must be
// set.
type Step struct {
	Insert *InsertStep `yaml:"insert,omitempty"`
	Update *UpdateStep `yaml:"update,omitempty"`
	Delete *DeleteStep `yaml:"delete,omitempty"`
	Attach *AttachStep `yaml:"attach,omitempty"`
	Detach *DetachStep `yaml:"detach,omitempty"`

	// Expect, when set, requires the step to fail with the named
	// error code instead of succeeding.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// InsertStep creates a record under a symbolic name.
type InsertStep struct {
	// As is the symbolic name later steps and assertions use to refer
	// to the record.
	As string `yaml:"as"`

	// Kind is the record kind, declared in the schema.
	Kind string `yaml:"kind"`

	// Fields holds the field literals, converted to the declared
	// types.
	Fields map[string]any `yaml:"fields"`

	// Owner optionally names an already-inserted record to attach the
	// new record to, in the same transaction.
	Owner string `yaml:"owner,omitempty"`

	// ID optionally forces the stored identity. Used to provoke
	// duplicate-identity failures.
	ID string `yaml:"id,omitempty"`
}

// UpdateStep changes one field of a named record.
type UpdateStep struct {
	Record string `yaml:"record"`
	Field  string `yaml:"field"`
	Value  any    `yaml:"value"`
}

// DeleteStep removes a named record (with cascade per schema).
type DeleteStep struct {
	Record string `yaml:"record"`
}

// AttachStep appends a named record to a named owner's collection.
type AttachStep struct {
	Owner  string `yaml:"owner"`
	Record string `yaml:"record"`
}

// DetachStep removes a named record from its owner's collection.
type DetachStep struct {
	Record string `yaml:"record"`
}

// ExpectClause specifies an expected failure.
type ExpectClause struct {
	// Error is the expected store error code, e.g. DUPLICATE_IDENTITY.
	Error string `yaml:"error"`
}

// Assertion validates the trace or the final query results.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_results.
	Type string `yaml:"type"`

	// Op and Record select an event (trace_contains, trace_count; for
	// trace_count Record is optional).
	Op     string `yaml:"op,omitempty"`
	Record string `yaml:"record,omitempty"`

	// Events is the expected relative order (trace_order).
	Events []EventRef `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Results is the expected final query result, as symbolic names
	// in order (final_results).
	Results []string `yaml:"results,omitempty"`
}

// EventRef selects a trace event by op and symbolic record name.
type EventRef struct {
	Op     string `yaml:"op"`
	Record string `yaml:"record"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalResults  = "final_results"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected, so typos fail loudly instead of silently skipping an
// assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and every
// step names exactly one operation.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		ops := 0
		if step.Insert != nil {
			ops++
			if step.Insert.As == "" {
				return fmt.Errorf("steps[%d].insert: as is required", i)
			}
			if step.Insert.Kind == "" {
				return fmt.Errorf("steps[%d].insert: kind is required", i)
			}
		}
		if step.Update != nil {
			ops++
			if step.Update.Record == "" || step.Update.Field == "" {
				return fmt.Errorf("steps[%d].update: record and field are required", i)
			}
		}
		if step.Delete != nil {
			ops++
			if step.Delete.Record == "" {
				return fmt.Errorf("steps[%d].delete: record is required", i)
			}
		}
		if step.Attach != nil {
			ops++
			if step.Attach.Owner == "" || step.Attach.Record == "" {
				return fmt.Errorf("steps[%d].attach: owner and record are required", i)
			}
		}
		if step.Detach != nil {
			ops++
			if step.Detach.Record == "" {
				return fmt.Errorf("steps[%d].detach: record is required", i)
			}
		}
		if ops != 1 {
			return fmt.Errorf("steps[%d]: exactly one operation is required, got %d", i, ops)
		}
		if step.Expect != nil && step.Expect.Error == "" {
			return fmt.Errorf("steps[%d].expect: error is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" || a.Record == "" {
			return fmt.Errorf("assertions[%d]: op and record are required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalResults:
		// An empty results list is a valid expectation.
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
