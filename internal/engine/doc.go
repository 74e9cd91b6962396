// Package engine implements the DreamTheater rule engine.
//
// The engine is a Mealy machine over narrative state: inputs are event
// names, outputs are scene ids, and the transition function is "first
// matching rule wins".
//
// ARCHITECTURE:
//
// Single Owner:
// An Engine exclusively owns its DreamState and rule list. All mutation
// goes through effects dispatched from Trigger. Callers read immutable
// snapshots via State and History.
//
// Trigger Flow:
//  1. Scan rules in declaration order; the first whose condition holds wins
//  2. Dispatch the winning rule's action through the effect.Dispatcher
//  3. Snapshot the resulting scene and counters
//  4. Append a TriggerRecord stamped with the next logical seq
//  5. Return the resulting scene id
//
// An event that matches nothing is a valid no-op and is still recorded.
// Malformed actions and unknown effects degrade to no-ops and surface as
// warning diagnostics on the record; Trigger has no error path.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// History records carry a monotonic seq from Clock.Next(). Ordering and
// replay use seq; the wall-clock Timestamp is informational only.
//
// Deterministic Evaluation:
// Rules are evaluated in declaration order. The rule slice is copied at
// construction and never reordered.
package engine
