package pipeline

import "errors"

var (
	// ErrInvalidParams indicates job parameters that fail validation.
	ErrInvalidParams = errors.New("invalid pipeline parameters")

	// ErrNoJSONObject indicates a reply without a {...} span.
	ErrNoJSONObject = errors.New("no JSON object found")

	// ErrMalformedJSON indicates a {...} span that does not parse.
	ErrMalformedJSON = errors.New("malformed JSON object")

	// ErrInvalidSummary indicates a parsed reply whose top level is not a JSON object.
	ErrInvalidSummary = errors.New("summary does not match schema")

	// ErrVectorCountMismatch indicates an embedding response of the wrong length.
	ErrVectorCountMismatch = errors.New("embedding count mismatch")
)
