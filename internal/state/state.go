// Package state holds the mutable narrative state and its mutation
// primitives.
//
// A DreamState is owned by exactly one engine. Effects mutate it through the
// methods below; everyone else reads ir.StateSnapshot copies.
package state

import "github.com/roach88/dreamtheater/internal/ir"

const (
	// InitialScene is the reserved scene every story starts in.
	InitialScene = "lobby"

	// DefaultFinishLabel is used when finish() is called without a label.
	DefaultFinishLabel = "complete"
)

// DreamState is the live narrative state.
//
// INVARIANTS:
//   - scene is never empty
//   - counter values are never negative (the only mutator is Increment)
//   - messages only grow, except through ClearMessages
type DreamState struct {
	scene    string
	counters map[string]int64
	messages []string
	finished string
	blocked  bool
}

// New creates a state positioned at InitialScene with no counters.
func New() *DreamState {
	return &DreamState{
		scene:    InitialScene,
		counters: make(map[string]int64),
		messages: []string{},
	}
}

// FromSnapshot creates a state restored from a snapshot.
func FromSnapshot(snap ir.StateSnapshot) *DreamState {
	s := New()
	s.Restore(snap)
	return s
}

// Scene returns the current scene id.
func (s *DreamState) Scene() string {
	return s.scene
}

// SetScene moves to the given scene. An empty id is ignored so the scene
// is never empty.
func (s *DreamState) SetScene(id string) {
	if id == "" {
		return
	}
	s.scene = id
}

// Counter returns the named counter; absent counters read as 0.
func (s *DreamState) Counter(name string) int64 {
	return s.counters[name]
}

// Increment adds one to the named counter and returns the new value.
func (s *DreamState) Increment(name string) int64 {
	s.counters[name]++
	return s.counters[name]
}

// Counters returns a copy of all counters.
func (s *DreamState) Counters() map[string]int64 {
	return ir.CloneCounters(s.counters)
}

// Messages returns a copy of the pending announcements.
func (s *DreamState) Messages() []string {
	return append([]string{}, s.messages...)
}

// PushMessage appends an announcement.
func (s *DreamState) PushMessage(msg string) {
	s.messages = append(s.messages, msg)
}

// ClearMessages drops all announcements.
func (s *DreamState) ClearMessages() {
	s.messages = []string{}
}

// Finish marks the story as terminated with the given label.
// An empty label becomes DefaultFinishLabel.
func (s *DreamState) Finish(label string) {
	if label == "" {
		label = DefaultFinishLabel
	}
	s.finished = label
}

// Finished returns the terminal label and whether the story has finished.
func (s *DreamState) Finished() (string, bool) {
	return s.finished, s.finished != ""
}

// Block sets the advisory blocked flag.
func (s *DreamState) Block() {
	s.blocked = true
}

// Unblock clears the advisory blocked flag.
func (s *DreamState) Unblock() {
	s.blocked = false
}

// Blocked reports the advisory blocked flag.
func (s *DreamState) Blocked() bool {
	return s.blocked
}

// Snapshot returns an immutable copy of the state.
func (s *DreamState) Snapshot() ir.StateSnapshot {
	return ir.StateSnapshot{
		Scene:    s.scene,
		Counters: s.Counters(),
		Messages: s.Messages(),
		Finished: s.finished,
		Blocked:  s.blocked,
	}
}

// Restore replaces the state with a snapshot's contents. Negative counters
// are dropped and an empty scene falls back to InitialScene.
func (s *DreamState) Restore(snap ir.StateSnapshot) {
	s.scene = snap.Scene
	if s.scene == "" {
		s.scene = InitialScene
	}
	s.counters = make(map[string]int64, len(snap.Counters))
	for k, v := range snap.Counters {
		if v >= 0 {
			s.counters[k] = v
		}
	}
	s.messages = append([]string{}, snap.Messages...)
	s.finished = snap.Finished
	s.blocked = snap.Blocked
}
