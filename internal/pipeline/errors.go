package pipeline

import "errors"

var (
	// ErrMalformedInput is returned when CSV input or an API response body
	// cannot be turned into records.
	ErrMalformedInput = errors.New("malformed input")

	// ErrMalformedPayload is returned when a stored record no longer parses
	// as JSON. The whole batch containing it is rolled back.
	ErrMalformedPayload = errors.New("malformed stored payload")

	// ErrInvalidSource is returned for an empty or over-long source label.
	ErrInvalidSource = errors.New("invalid source label")

	// ErrUpstream is returned when an API responds with a non-2xx status.
	ErrUpstream = errors.New("upstream request failed")
)
