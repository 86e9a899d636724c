package stream

import "github.com/pkg/errors"

var (
	//ErrSourceUnavailable means the frame source could not be opened or read. Terminal for the session.
	ErrSourceUnavailable = errors.New("source unavailable")

	//ErrDetectorFailure means a detector call failed. The frame falls back to the cached result.
	ErrDetectorFailure = errors.New("detector failure")

	//ErrInvalidInput means a stream reference was rejected before any session started.
	ErrInvalidInput = errors.New("invalid input")

	//ErrEventOrder means an event was published out of the session lifecycle order.
	ErrEventOrder = errors.New("event out of order")
)
