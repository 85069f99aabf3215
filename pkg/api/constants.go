package api

const (
	// Prefixes all journal keys (DATA or INV)
	DATA      = "DAT"
	INVENTORY = "INV"

	// Additional key parts
	TOPICS = "TOPICS"
)

// Event kinds carried on a subscription stream.
const (
	EventNext     = "next"
	EventError    = "error"
	EventComplete = "complete"
)
