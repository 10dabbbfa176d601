package logger

// Standard field keys for structured logging. Use these keys
// consistently across all log statements so backend logs aggregate
// cleanly regardless of which driver emitted them.
const (
	// KeyBackend is the backend scheme handling the operation
	KeyBackend = "backend"

	// KeyURI is the (redacted) backend URI
	KeyURI = "uri"

	// KeyFsname is the filesystem name the backend indexes
	KeyFsname = "fsname"

	// KeyEvents is the number of events in a bulk update
	KeyEvents = "events"

	// KeyFilter is the rendered filter of a query
	KeyFilter = "filter"

	// KeyDuration is the elapsed time of an operation
	KeyDuration = "duration"

	// KeyError is the error attached to a failed operation
	KeyError = "error"
)
