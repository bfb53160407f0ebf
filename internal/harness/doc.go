// Package harness provides conformance testing for sensor expressions.
//
// The harness builds an expression from a scenario, compiles it for the
// simulated environment, drives its inputs and checks the values it
// produces. Every run gets a fresh environment and an in-memory binding
// registry; run names, binding keys and trace sequence numbers are
// deterministic, so snapshots of the same scenario are byte-identical.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	expr:                      # or document: path/to/doc.cue
//	  op: add
//	  args:
//	    - {op: source, name: x, type: double, value: 1}
//	    - {op: const, type: double, value: 2}
//	persist: false
//	writes:
//	  - set: {x: 5}
//	    cycles: 1
//	    expect: 7
//	expect:
//	  value: 3
//	  output_type: Double
//	  primitives: {Double::Add: 1, Sim::SourceDouble: 1}
//	  cheap: false
//
// With expect.error the scenario passes only if building or compiling
// fails with a message containing it.
//
// # Golden Files
//
// RunWithGolden compares the compiled fragment and the trace against
// testdata/golden/{name}.golden. Run tests with -update to regenerate.
package harness
