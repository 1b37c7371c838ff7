// Package harness runs YAML-scripted store scenarios and captures
// deterministic change traces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	query:
//	  kind: User
//	  where:
//	    eq: {field: city, value: London}
//	  sort:
//	    - {field: name, dir: asc}
//	steps:
//	  - insert: {as: u1, kind: User, fields: {name: Rhea, city: London, join_date: 100}}
//	  - update: {record: u1, field: city, value: Paris}
//	  - delete: {record: u1}
//	assertions:
//	  - type: trace_order
//	    events:
//	      - {op: insert, record: u1}
//	      - {op: delete, record: u1}
//
// Records carry symbolic names (`as: u1`) so traces stay comparable
// across runs even though stored identities are generated per run.
//
// # Assertion Types
//
//   - trace_contains: an event with matching op/record appears
//   - trace_order: events appear in the given relative order
//   - trace_count: an op appears exactly N times
//   - final_results: the watched query's final result names
//
// # Deterministic Testing
//
// Each run opens a fresh store, so the logical clock starts at zero
// and every trace seq is reproducible. With symbolic record names in
// place of generated ids, the whole trace snapshot is stable and can
// be compared against a golden file.
package harness
