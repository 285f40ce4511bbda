package platform

import "errors"

// Common errors returned by the platform package. Missing counts and
// missing authentication are routine conditions here, so they are
// modeled as error kinds rather than treated as exceptional.
var (
	// ErrAuthRequired is returned by operations that need prior
	// authentication when the worker has none.
	ErrAuthRequired = errors.New("authentication required")

	// ErrNotFound is returned when the worker reports no usable value
	// for a requested field.
	ErrNotFound = errors.New("value not found in worker response")

	// ErrUnparsableCount is returned when a numeric field's text cannot
	// be normalized into a count.
	ErrUnparsableCount = errors.New("unparsable count text")

	// ErrMalformedEvent is returned when a push-event payload cannot be
	// decoded at all.
	ErrMalformedEvent = errors.New("malformed push event payload")
)
