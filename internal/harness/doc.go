// Package harness runs YAML scenarios against DreamTheater worlds.
//
// A scenario loads a world script, optionally seeds the state, feeds a list
// of events to a real engine and checks per-step expectations plus final
// assertions. Runs use a deterministic time source, so the resulting history
// is byte-identical across runs and can be compared against a golden file.
//
// # Scenario Format
//
//	name: dreamflow_guard
//	description: "The layer three door needs the key"
//	world: ../worlds/dreamflow.dsl
//	scripts: []                  # optional Lua effect files
//	setup:
//	  scene: layer2
//	  counters: { greenBox: 1 }
//	steps:
//	  - event: user.openLayerThreeDoor
//	    expect:
//	      scene: layer2
//	      rule_action: announce("The door is locked. You need the key.")
//	  - event: user.nonsense
//	    expect: { no_match: true }
//	assertions:
//	  - type: final_scene
//	    scene: layer2
//	  - type: counter
//	    name: greenBox
//	    value: 1
//
// Paths are relative to the scenario file.
//
// # Assertion Types
//
//   - final_scene: the final scene equals scene
//   - counter: counter name equals value
//   - messages: the announcement list equals messages, or contains contains
//   - finished: the story finished with label (empty label means not finished)
//   - blocked: the blocked flag equals value
//   - history_length: exactly count trigger records
//   - trace_contains: some record fired action (optionally for event)
//   - trace_order: the scenes were entered in the listed order
//   - trace_count: action fired exactly count times
//   - no_diagnostics: no dispatch diagnostics were raised
//   - save_roundtrip: the game survives a save and load through SQLite
//
// # Golden Files
//
// Snapshot renders a run as canonical JSON. RunWithGolden compares it with
// goldie; the CLI `test` command keeps goldens next to scenarios in a
// golden/ directory.
package harness
