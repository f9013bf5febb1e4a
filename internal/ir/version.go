package ir

// Version constants for the journal schema and runtime.
const (
	// RecordVersion is the journal record schema version.
	RecordVersion = "1"

	// RuntimeVersion is the splitscript runtime version.
	RuntimeVersion = "0.1.0"
)
