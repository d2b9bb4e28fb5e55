package ir

// Version constants for the journal schema and engine.
const (
	// IRVersion is the journal record schema version.
	IRVersion = "1"

	// EngineVersion is the poe engine version.
	EngineVersion = "0.1.0"
)
