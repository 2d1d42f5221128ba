// Package harness runs conformance scenarios against the query pipeline.
//
// # Scenario Format
//
// Scenarios are YAML files. Globals are registered in document order, each
// step's plan is resolved, compiled and executed against them, and the
// assertions check the globals afterwards:
//
//	name: top_orders
//	description: "Top-K under a limit"
//	config: pql.cue          # optional, relative to the scenario file
//	mode: permissive         # optional, overrides the config
//	now: "2024-01-02T00:00:00Z"
//	globals:
//	  orders: !bag [{name: a, qty: 5}, {name: b, qty: 1}]
//	steps:
//	  - name: top
//	    plan:
//	      query: ...
//	    expect:
//	      value: [a]
//	  - plan:
//	      delete: {target: {id: orders}, as: o}
//	    expect:
//	      count: 2
//	assertions:
//	  - type: final_state
//	    global: orders
//	    expect: !bag []
//
// Values use the tagged YAML form of the value package (!bag, !missing,
// !decimal, ...). An expect clause may name a value, an error code, an
// affected-row count, the expected problem codes and EXPLAIN fragments.
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory catalog with sequential
// global ids, and every step sees its own tick of a
// testutil.DeterministicClock as the session time. Runs are reproducible,
// so RunWithGolden can snapshot the EXPLAIN output and results.
package harness
