// Package ir provides the shared data types for DreamTheater.
//
// This package contains plain data only. All other internal packages
// import ir; ir imports nothing internal. This keeps the parsed program,
// state snapshots and history records serializable and free of behaviour,
// which the persistence and harness layers rely on.
//
// Key design constraints:
//   - Rule order in Program.Rules is semantically significant and is never
//     reordered after parsing
//   - Counters are non-negative int64 values
//   - All JSON tags use snake_case
//   - No float types in persisted shapes, so canonical JSON always succeeds
package ir
