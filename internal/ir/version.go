package ir

// Version constants for persisted data and the engine.
const (
	// SaveVersion is the SavedGame schema version.
	SaveVersion = "1.0"

	// EngineVersion is the DreamTheater engine version.
	EngineVersion = "0.1.0"

	// DefaultWorldDescription is used when a world declares no description.
	DefaultWorldDescription = "A DreamTheater world"
)
