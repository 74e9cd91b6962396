package ir

// StateSnapshot is an immutable copy of the narrative state.
// Engines hand these out instead of their live state.
type StateSnapshot struct {
	Scene    string           `json:"scene"`
	Counters map[string]int64 `json:"counters"`
	Messages []string         `json:"messages"`

	// Finished holds the terminal label; empty means still running.
	Finished string `json:"finished,omitempty"`
	Blocked  bool   `json:"blocked"`
}

// Clone returns a deep copy of the snapshot.
func (s StateSnapshot) Clone() StateSnapshot {
	out := s
	out.Counters = CloneCounters(s.Counters)
	out.Messages = append([]string{}, s.Messages...)
	return out
}

// CloneCounters copies a counter map. A nil map yields an empty map.
func CloneCounters(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// TriggerRecord is one immutable history entry, appended per trigger call.
type TriggerRecord struct {
	// Seq is the engine's logical clock value for this trigger.
	Seq   int64  `json:"seq"`
	Event string `json:"event"`

	// RuleAction is the matched rule's action text; empty when no rule
	// matched. Rules with a blank action never reach the engine.
	RuleAction  string           `json:"rule_action,omitempty"`
	SceneBefore string           `json:"scene_before"`
	SceneAfter  string           `json:"scene_after"`
	Counters    map[string]int64 `json:"counters"`

	// Timestamp is wall time in Unix milliseconds. It is informational only;
	// ordering always uses Seq.
	Timestamp int64 `json:"timestamp"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Matched reports whether a rule fired for this trigger.
func (r TriggerRecord) Matched() bool {
	return r.RuleAction != ""
}

// SavedGame is the persisted shape of a running story.
type SavedGame struct {
	ID        string          `json:"id"`
	WorldID   string          `json:"world_id"`
	State     StateSnapshot   `json:"state"`
	History   []TriggerRecord `json:"history"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
}
