package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bindery/internal/schema"
)

// TraceSnapshot is the golden-file shape for one scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        []string     `json:"final,omitempty"`
}

// RunWithGolden executes a scenario against a fresh store at dbPath
// and compares the captured trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, dbPath string, sch *schema.Schema) *Result {
	t.Helper()

	result, err := Run(scenario, dbPath, sch)
	if err != nil {
		t.Fatalf("scenario %s failed to run: %v", scenario.Name, err)
	}
	if !result.Pass {
		t.Fatalf("scenario %s failed: %v", scenario.Name, result.Errors)
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	data, err := marshalSnapshot(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}

// marshalSnapshot produces stable, diff-friendly JSON: struct field
// order, two-space indent, trailing newline.
func marshalSnapshot(s TraceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
